package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/oggyb/match-relay/internal/app"
	"github.com/oggyb/match-relay/internal/db"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/metrics"
	"github.com/oggyb/match-relay/internal/notify"
	"github.com/oggyb/match-relay/internal/repository"
	"github.com/oggyb/match-relay/internal/service"
	"github.com/oggyb/match-relay/internal/utils/pagination"
)

// DefaultPageSize is used when a listing asks for a non-positive limit.
const DefaultPageSize = 20

// Candidate is the profile shown to a user deciding whether to like.
type Candidate struct {
	ID       uint64    `json:"id"`
	Name     string    `json:"name"`
	Gender   db.Gender `json:"gender"`
	Campus   string    `json:"campus,omitempty"`
	Bio      string    `json:"bio,omitempty"`
	Hobbies  string    `json:"hobbies,omitempty"`
	PhotoRef string    `json:"photo_ref,omitempty"`
}

// LikeResult reports what a like led to.
type LikeResult struct {
	Mutual bool `json:"mutual"`
	// PartnerBusy is set on a mutual like whose target is in another chat.
	PartnerBusy bool `json:"partner_busy,omitempty"`
}

// Service implements candidate selection and the like ledger on top of
// repository and cache layers.
type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	swipes   *repository.SwipeRepository
	sessions *repository.SessionRepository
	notifier *notify.Notifier
}

// NewService creates a matching service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		swipes:   repository.NewSwipeRepository(appCtx.DB),
		sessions: repository.NewSessionRepository(appCtx.DB),
		notifier: appCtx.Notifier(),
	}
}

// NextCandidate returns one unseen, eligible profile chosen at random.
//
// Behavior:
//   - No profile → ErrNoProfile; banned → ErrBanned; in a chat → ErrAlreadyInChat.
//   - Eligible: gender admitted by the user's preference, not banned, not
//     the user, never liked by the user.
//   - nil, nil means nobody is eligible right now.
//
// Example:
//
//	svc.NextCandidate(ctx, 42)
func (s *Service) NextCandidate(ctx context.Context, userID uint64) (*Candidate, error) {
	s.appCtx.Logger.Debug("NextCandidate called", "user_id", userID)

	me, err := service.Actor(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureIdle(ctx, userID); err != nil {
		return nil, err
	}

	u, err := s.profiles.PickCandidate(ctx, userID, me.Preference.Genders())
	if err != nil {
		s.appCtx.Logger.Error("PickCandidate failed", "user_id", userID, "err", err)
		return nil, fmt.Errorf("pick candidate: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	return toCandidate(u), nil
}

// Like records liker → liked and reports whether it completed a match.
//
// Behavior:
//   - Self, missing/banned actor, actor in a chat, missing/banned target are rejected.
//   - Duplicate likes are absorbed; the mutual flag is still reported but
//     nobody is alerted twice.
//   - Mutual, target idle: both users get a match alert.
//   - Mutual, target busy: only the liker is told, PartnerBusy is set.
//   - One-way and new: the target gets a best-effort "someone liked you".
func (s *Service) Like(ctx context.Context, likerID, likedID uint64) (*LikeResult, error) {
	s.appCtx.Logger.Debug("Like called", "liker", likerID, "liked", likedID)

	if likerID == likedID {
		return nil, svcErr.ErrSelf
	}
	me, err := service.Actor(ctx, s.profiles, likerID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureIdle(ctx, likerID); err != nil {
		return nil, err
	}
	them, err := service.Target(ctx, s.profiles, likedID)
	if err != nil {
		return nil, err
	}

	inserted, err := s.swipes.RecordLike(ctx, likerID, likedID)
	if err != nil {
		return nil, fmt.Errorf("record like: %w", err)
	}
	if inserted {
		metrics.SwipesTotal.Inc()
	}

	// both sides' admirer lists may have changed
	if err := s.appCtx.RedisCache.InvalidateAdmirerCounts(ctx, likerID, likedID); err != nil {
		s.appCtx.Logger.Warn("admirer count invalidation failed", "err", err)
	}

	// read after our own write on the same handle
	mutual, err := s.swipes.IsMutual(ctx, likerID, likedID)
	if err != nil {
		return nil, fmt.Errorf("mutual check: %w", err)
	}

	res := &LikeResult{Mutual: mutual}
	switch {
	case mutual && inserted:
		metrics.MatchesTotal.Inc()
		busy, err := s.sessions.HasActive(ctx, likedID)
		if err != nil {
			return nil, fmt.Errorf("partner state: %w", err)
		}
		if busy {
			res.PartnerBusy = true
			s.notifier.Tell(ctx, likerID, "🎯 You have a match! However, your match is currently in another conversation. Try again later!")
			break
		}
		s.notifier.Tell(ctx, likedID, fmt.Sprintf(
			"🎆 It's a match! You both liked each other.\n\nMatched with: %s. Send /chat %d to say hi!", me.Name, likerID))
		s.notifier.Tell(ctx, likerID, fmt.Sprintf(
			"🎆 It's a match with %s! Send /chat %d to start chatting.", them.Name, likedID))

	case inserted:
		text := fmt.Sprintf("🔥 Someone liked you!\n\n👤 %s just swiped right. Use /find to see who it is!", me.Name)
		if me.PhotoRef != "" {
			s.notifier.TellPhoto(ctx, likedID, me.PhotoRef, text)
		} else {
			s.notifier.Tell(ctx, likedID, text)
		}
	}

	return res, nil
}

// ListAdmirers returns users who liked userID and have not been liked back,
// newest first, paginated with an opaque token.
func (s *Service) ListAdmirers(ctx context.Context, userID uint64, token *string, limit int) ([]repository.Admirer, *string, error) {
	if _, err := service.Actor(ctx, s.profiles, userID); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	admirers, next, err := s.swipes.GetNewLikers(ctx, userID, token, limit)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, nil, svcErr.InvalidArgument("invalid pagination token")
	}
	if err != nil {
		s.appCtx.Logger.Error("GetNewLikers failed", "user_id", userID, "err", err)
		return nil, nil, fmt.Errorf("list admirers: %w", err)
	}
	return admirers, next, nil
}

// CountAdmirers returns how many users are waiting for a like back.
// Cache-first strategy:
//  1. Attempts to read from Redis (admirers:count:userID).
//  2. On a miss or Redis failure, falls back to the DB.
//  3. On DB fetch, refreshes Redis with a 1h TTL.
func (s *Service) CountAdmirers(ctx context.Context, userID uint64) (int64, error) {
	if n, ok, err := s.appCtx.RedisCache.GetAdmirerCount(ctx, userID); err == nil && ok {
		return n, nil
	} else if err != nil {
		s.appCtx.Logger.Warn("admirer count cache read failed", "user_id", userID, "err", err)
	}

	count, err := s.swipes.CountNewLikers(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count admirers: %w", err)
	}
	_ = s.appCtx.RedisCache.SetAdmirerCount(ctx, userID, count)
	return count, nil
}

// SetPreference changes which genders the user is shown.
// Refused while in a chat.
func (s *Service) SetPreference(ctx context.Context, userID uint64, raw string) (db.Preference, error) {
	pref, ok := db.ParsePreference(raw)
	if !ok {
		return "", svcErr.ErrInvalidPreference
	}
	if _, err := service.Actor(ctx, s.profiles, userID); err != nil {
		return "", err
	}
	if err := s.ensureIdle(ctx, userID); err != nil {
		return "", err
	}
	if err := s.profiles.SetPreference(ctx, userID, pref); err != nil {
		return "", fmt.Errorf("set preference: %w", err)
	}
	s.notifier.Tell(ctx, userID, fmt.Sprintf("✅ Preference updated: you will now see %s profiles.", describe(pref)))
	return pref, nil
}

func (s *Service) ensureIdle(ctx context.Context, userID uint64) error {
	active, err := s.sessions.HasActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("session state: %w", err)
	}
	if active {
		return svcErr.ErrAlreadyInChat
	}
	return nil
}

func describe(p db.Preference) string {
	if p == db.PreferenceBoth {
		return "all"
	}
	return string(p)
}

func toCandidate(u *db.User) *Candidate {
	return &Candidate{
		ID:       u.ID,
		Name:     u.Name,
		Gender:   u.Gender,
		Campus:   u.Campus,
		Bio:      u.Bio,
		Hobbies:  u.Hobbies,
		PhotoRef: u.PhotoRef,
	}
}
