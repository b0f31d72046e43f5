package session

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/oggyb/match-relay/internal/app"
	"github.com/oggyb/match-relay/internal/db"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/metrics"
	"github.com/oggyb/match-relay/internal/notify"
	"github.com/oggyb/match-relay/internal/repository"
	"github.com/oggyb/match-relay/internal/service"
)

// Outcome is what a chat attempt led to.
type Outcome string

const (
	// OutcomeConnected: both users are now in an active session.
	OutcomeConnected Outcome = "connected"
	// OutcomeQueued: a pending request was left for the other user.
	OutcomeQueued Outcome = "queued"
	// OutcomeAwaitingConsent: an earlier request from the initiator is still pending.
	OutcomeAwaitingConsent Outcome = "awaiting_consent"
)

// State is a user's position in the chat lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StatePendingOutbound State = "pending_outbound"
	StatePendingInbound  State = "pending_inbound"
	StateActive          State = "active"
)

// Status is the derived lifecycle state plus the ids it refers to.
type Status struct {
	State     State  `json:"state"`
	PartnerID uint64 `json:"partner_id,omitempty"`
	// Inbound counts pending requests addressed to the user.
	Inbound int `json:"inbound,omitempty"`
	// AwaitingID is the target of the user's newest pending request.
	AwaitingID uint64 `json:"awaiting_id,omitempty"`
}

const iceBreaker = "Don't be shy, start with a 'Hi' or your favorite emoji! 🥂\n\n💡 Type /stop at any time to end this chat."

// Service is the chat-session state machine. It re-reads the store for
// every decision and relies on the store's uniqueness rules for races.
type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	swipes   *repository.SwipeRepository
	sessions *repository.SessionRepository
	notifier *notify.Notifier
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		swipes:   repository.NewSwipeRepository(appCtx.DB),
		sessions: repository.NewSessionRepository(appCtx.DB),
		notifier: appCtx.Notifier(),
	}
}

// RequestChat handles "a wants to chat with b".
//
// Behavior:
//  1. a in a session → ErrAlreadyInChat.
//  2. b already asked a → implicit consent, pair consuming b's request.
//  3. a already asked b → OutcomeAwaitingConsent; a cannot skip b's consent.
//  4. a and b must have matched or exchanged requests before → else ErrNotMatched.
//  5. b busy, or b declined a before → queue a request, OutcomeQueued.
//  6. otherwise pair. If b became busy meanwhile, fall back to the queue.
func (s *Service) RequestChat(ctx context.Context, a, b uint64) (Outcome, error) {
	s.appCtx.Logger.Debug("RequestChat called", "from", a, "to", b)

	if a == b {
		return "", svcErr.ErrSelf
	}
	me, err := service.Actor(ctx, s.profiles, a)
	if err != nil {
		return "", err
	}
	them, err := service.Target(ctx, s.profiles, b)
	if err != nil {
		return "", err
	}

	active, err := s.sessions.HasActive(ctx, a)
	if err != nil {
		return "", fmt.Errorf("session state: %w", err)
	}
	if active {
		return "", svcErr.ErrAlreadyInChat
	}

	inbound, err := s.sessions.PendingRequest(ctx, b, a)
	if err != nil {
		return "", fmt.Errorf("inbound request: %w", err)
	}
	if inbound != nil {
		err := s.sessions.Pair(ctx, a, b, repository.PairOptions{ConsumeRequestID: inbound.ID})
		switch {
		case err == nil:
			metrics.SessionsStarted.WithLabelValues(metrics.PathImplicitConsent).Inc()
			s.announceConnected(ctx, me, them)
			return OutcomeConnected, nil
		case errors.Is(err, repository.ErrCounterpartBusy):
			return s.queue(ctx, me, them)
		default:
			return "", s.pairError(err)
		}
	}

	outbound, err := s.sessions.PendingRequest(ctx, a, b)
	if err != nil {
		return "", fmt.Errorf("outbound request: %w", err)
	}
	if outbound != nil {
		s.notifier.Tell(ctx, a, fmt.Sprintf("⏳ Your request to %s is still waiting for their consent.", them.Name))
		return OutcomeAwaitingConsent, nil
	}

	if err := s.ensureEligible(ctx, a, b); err != nil {
		return "", err
	}

	busy, err := s.sessions.HasActive(ctx, b)
	if err != nil {
		return "", fmt.Errorf("partner state: %w", err)
	}
	declined, err := s.sessions.HasDeclined(ctx, a, b)
	if err != nil {
		return "", fmt.Errorf("decline history: %w", err)
	}
	if busy || declined {
		return s.queue(ctx, me, them)
	}

	err = s.sessions.Pair(ctx, a, b, repository.PairOptions{})
	switch {
	case err == nil:
		metrics.SessionsStarted.WithLabelValues(metrics.PathDirect).Inc()
		s.announceConnected(ctx, me, them)
		return OutcomeConnected, nil
	case errors.Is(err, repository.ErrCounterpartBusy):
		// lost a race for b's session row
		return s.queue(ctx, me, them)
	default:
		return "", s.pairError(err)
	}
}

// Accept pairs the user with the requester of a pending request addressed to them.
//
// An active partner is never displaced: an acceptor in a chat gets
// ErrAlreadyInChat, a busy requester ErrPartnerBusy, and the request stays pending.
func (s *Service) Accept(ctx context.Context, userID, requestID uint64) (uint64, error) {
	s.appCtx.Logger.Debug("Accept called", "user_id", userID, "request_id", requestID)

	me, err := service.Actor(ctx, s.profiles, userID)
	if err != nil {
		return 0, err
	}
	req, err := s.sessions.GetPendingForRecipient(ctx, requestID, userID)
	if err != nil {
		return 0, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return 0, svcErr.ErrRequestNotFound
	}

	active, err := s.sessions.HasActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("session state: %w", err)
	}
	if active {
		return 0, svcErr.ErrAlreadyInChat
	}

	requester, err := service.Target(ctx, s.profiles, req.RequesterID)
	if err != nil {
		return 0, err
	}

	if err := s.sessions.Pair(ctx, userID, requester.ID, repository.PairOptions{ConsumeRequestID: req.ID}); err != nil {
		return 0, s.pairError(err)
	}

	metrics.SessionsStarted.WithLabelValues(metrics.PathAccepted).Inc()
	s.notifier.Tell(ctx, userID, fmt.Sprintf("✅ Chat started with %s!\n\n%s", requester.Name, iceBreaker))
	s.notifier.Tell(ctx, requester.ID, fmt.Sprintf(
		"✅ Your chat request was accepted! You are now connected with %s.\n\n%s", me.Name, iceBreaker))
	return requester.ID, nil
}

// Decline marks a pending request declined. The decliner gets a neutral
// acknowledgement; the requester is not told.
func (s *Service) Decline(ctx context.Context, userID, requestID uint64) error {
	ok, err := s.sessions.Decline(ctx, requestID, userID)
	if err != nil {
		return fmt.Errorf("decline request: %w", err)
	}
	if !ok {
		return svcErr.ErrRequestNotFound
	}
	s.notifier.Tell(ctx, userID, "Request declined.")
	return nil
}

// ClearRequests declines every pending request addressed to the user.
func (s *Service) ClearRequests(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.sessions.DeclineAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear requests: %w", err)
	}
	s.notifier.Tell(ctx, userID, "🗑️ All pending requests have been cleared.")
	return n, nil
}

// ListRequests returns pending requests addressed to the user, newest first.
func (s *Service) ListRequests(ctx context.Context, userID uint64) ([]repository.PendingInbound, error) {
	if _, err := service.Actor(ctx, s.profiles, userID); err != nil {
		return nil, err
	}
	reqs, err := s.sessions.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// Stop ends the user's session. The former partner can only come back
// through a request the user accepts. Stopping while idle is a no-op.
func (s *Service) Stop(ctx context.Context, userID uint64) (uint64, bool, error) {
	partnerID, had, err := s.sessions.Stop(ctx, userID)
	if err != nil {
		return 0, false, fmt.Errorf("stop session: %w", err)
	}
	if !had {
		s.notifier.Tell(ctx, userID, "You are not in a chat right now.")
		return 0, false, nil
	}

	metrics.SessionsEnded.WithLabelValues(metrics.EndStop).Inc()
	s.appCtx.Logger.Info("session stopped", "user_id", userID, "partner_id", partnerID)

	s.notifier.Tell(ctx, partnerID, "❌ Your chat partner has ended the conversation.\n\n"+
		"To reconnect they will need to accept your new request.")
	s.notifier.Tell(ctx, userID, "📴 Chat ended. The other user will need your permission to reconnect.")
	return partnerID, true, nil
}

// State derives the user's lifecycle state from the store:
// active > pending inbound > pending outbound > idle.
func (s *Service) State(ctx context.Context, userID uint64) (*Status, error) {
	partnerID, active, err := s.sessions.PartnerOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session state: %w", err)
	}
	if active {
		return &Status{State: StateActive, PartnerID: partnerID}, nil
	}

	inbound, err := s.sessions.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("inbound requests: %w", err)
	}
	outbound, err := s.sessions.LatestPendingOutbound(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("outbound requests: %w", err)
	}

	st := &Status{State: StateIdle, Inbound: len(inbound)}
	if outbound != nil {
		st.AwaitingID = outbound.RequestedID
	}
	switch {
	case len(inbound) > 0:
		st.State = StatePendingInbound
	case outbound != nil:
		st.State = StatePendingOutbound
	}
	return st, nil
}

// BanUser flags the user banned and tears down their session without a
// reconnect request. Notices to both sides are best-effort.
func (s *Service) BanUser(ctx context.Context, userID uint64) error {
	partners, err := s.sessions.BanUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}

	s.appCtx.Logger.Info("user banned", "user_id", userID, "partners", partners)
	for _, p := range partners {
		metrics.SessionsEnded.WithLabelValues(metrics.EndBan).Inc()
		s.notifier.Tell(ctx, p, "❌ Your chat has ended.")
	}
	s.notifier.Tell(ctx, userID, "🚫 You have been banned from using this service.")
	return nil
}

// UnbanUser clears the ban flag.
func (s *Service) UnbanUser(ctx context.Context, userID uint64) error {
	err := s.profiles.SetBanned(ctx, userID, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("unban user: %w", err)
	}
	s.appCtx.Logger.Info("user unbanned", "user_id", userID)
	s.notifier.Tell(ctx, userID, "✅ Your account has been restored.")
	return nil
}

// queue leaves a pending request from me to them and tells both sides.
func (s *Service) queue(ctx context.Context, me, them *db.User) (Outcome, error) {
	created, err := s.sessions.CreateRequest(ctx, me.ID, them.ID)
	if err != nil {
		return "", fmt.Errorf("queue request: %w", err)
	}
	if created {
		metrics.ChatRequestsCreated.Inc()
		s.notifier.Tell(ctx, them.ID, "💬 Chat request\n\nSomeone wants to chat with you! Use /requests to view pending requests.")
	}
	s.notifier.Tell(ctx, me.ID, "📨 Chat request sent! The other user will be notified.\nYou can check your pending requests with /requests.")
	return OutcomeQueued, nil
}

func (s *Service) announceConnected(ctx context.Context, me, them *db.User) {
	s.appCtx.Logger.Info("session started", "user_id", me.ID, "partner_id", them.ID)
	s.notifier.Tell(ctx, me.ID, fmt.Sprintf("✅ Connected with %s!\n\n%s", them.Name, iceBreaker))
	s.notifier.Tell(ctx, them.ID, fmt.Sprintf("🎆 You are now chatting with %s!\n\n%s", me.Name, iceBreaker))
}

func (s *Service) ensureEligible(ctx context.Context, a, b uint64) error {
	mutual, err := s.swipes.IsMutual(ctx, a, b)
	if err != nil {
		return fmt.Errorf("mutual check: %w", err)
	}
	if mutual {
		return nil
	}
	history, err := s.sessions.HasRequestHistory(ctx, a, b)
	if err != nil {
		return fmt.Errorf("request history: %w", err)
	}
	if !history {
		return svcErr.ErrNotMatched
	}
	return nil
}

func (s *Service) pairError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInitiatorBusy):
		return svcErr.ErrAlreadyInChat
	case errors.Is(err, repository.ErrCounterpartBusy):
		return svcErr.ErrPartnerBusy
	case errors.Is(err, repository.ErrRequestGone):
		return svcErr.ErrRequestNotFound
	default:
		return fmt.Errorf("pair: %w", err)
	}
}
