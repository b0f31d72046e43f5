package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/match-relay/internal/app"
	svcErr "github.com/oggyb/match-relay/internal/errors"
	"github.com/oggyb/match-relay/internal/metrics"
	"github.com/oggyb/match-relay/internal/notify"
	"github.com/oggyb/match-relay/internal/repository"
)

// Content is one relayed item: text, or a photo reference with optional caption.
type Content struct {
	Text     string `json:"text,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

func (c Content) kind() string {
	if c.PhotoRef != "" {
		return "photo"
	}
	return "text"
}

// Delivery reports what happened to a relayed item.
type Delivery struct {
	PartnerID uint64 `json:"partner_id"`
	Delivered bool   `json:"delivered"`
	// Ended is set when the partner was unreachable and the session torn down.
	Ended bool `json:"ended,omitempty"`
}

// Service forwards content between the two users of an active session.
type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	sessions *repository.SessionRepository
	notifier *notify.Notifier
	locks    *keyedMutex
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		sessions: repository.NewSessionRepository(appCtx.DB),
		notifier: appCtx.Notifier(),
		locks:    newKeyedMutex(),
	}
}

// Relay forwards content from sender to their current partner.
//
// Behavior:
//   - No active session → ErrNotInChat; nothing is sent.
//   - Text arrives as "💬 <name>: <text>", photos captioned "📷 Photo from <name>".
//   - A failed delivery is final: the pair is torn down without a reconnect
//     request and the sender is told. No retry.
//   - Items from one sender are forwarded in submission order.
func (s *Service) Relay(ctx context.Context, senderID uint64, c Content) (*Delivery, error) {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" && c.PhotoRef == "" {
		return nil, svcErr.ErrEmptyMessage
	}

	unlock := s.locks.Lock(senderID)
	defer unlock()

	partnerID, ok, err := s.sessions.PartnerOf(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("session state: %w", err)
	}
	if !ok {
		return nil, svcErr.ErrNotInChat
	}

	name := "User"
	if u, err := s.profiles.Get(ctx, senderID); err == nil && u.Name != "" {
		name = u.Name
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load sender: %w", err)
	}

	if c.PhotoRef != "" {
		caption := fmt.Sprintf("📷 Photo from %s", name)
		if c.Caption != "" {
			caption += "\n\n" + c.Caption
		}
		err = s.notifier.DeliverPhoto(ctx, partnerID, c.PhotoRef, caption)
	} else {
		err = s.notifier.Deliver(ctx, partnerID, fmt.Sprintf("💬 %s: %s", name, c.Text))
	}

	if err != nil {
		s.appCtx.Logger.Info("partner unreachable, ending session",
			"sender_id", senderID, "partner_id", partnerID, "err", err)
		metrics.RelayMessages.WithLabelValues(c.kind(), "failed").Inc()

		if _, terr := s.sessions.Teardown(ctx, senderID, partnerID); terr != nil {
			return nil, fmt.Errorf("teardown after failed delivery: %w", terr)
		}
		metrics.SessionsEnded.WithLabelValues(metrics.EndUnreachable).Inc()
		s.notifier.Tell(ctx, senderID, "❌ Your partner is no longer available. Chat ended.")
		return &Delivery{PartnerID: partnerID, Ended: true}, nil
	}

	metrics.RelayMessages.WithLabelValues(c.kind(), "delivered").Inc()
	return &Delivery{PartnerID: partnerID, Delivered: true}, nil
}
