package notify

import (
	"context"
	"log/slog"

	"github.com/oggyb/match-relay/internal/metrics"
)

// Messenger is the outbound message transport. An error means the
// destination could not be reached; callers do not distinguish why.
type Messenger interface {
	SendText(ctx context.Context, userID uint64, text string) error
	SendPhoto(ctx context.Context, userID uint64, photoRef, caption string) error
}

// Notifier wraps a Messenger with the two delivery policies the services use.
type Notifier struct {
	messenger Messenger
	logger    *slog.Logger
}

func New(m Messenger, logger *slog.Logger) *Notifier {
	return &Notifier{messenger: m, logger: logger}
}

// Tell sends text best-effort: a failure is logged and dropped.
// Use it when the primary action has already succeeded.
func (n *Notifier) Tell(ctx context.Context, userID uint64, text string) {
	if err := n.messenger.SendText(ctx, userID, text); err != nil {
		n.dropped(userID, err)
	}
}

// TellPhoto is the photo variant of Tell.
func (n *Notifier) TellPhoto(ctx context.Context, userID uint64, photoRef, caption string) {
	if err := n.messenger.SendPhoto(ctx, userID, photoRef, caption); err != nil {
		n.dropped(userID, err)
	}
}

// Deliver sends text and returns the transport error so the caller can act on it.
func (n *Notifier) Deliver(ctx context.Context, userID uint64, text string) error {
	return n.messenger.SendText(ctx, userID, text)
}

// DeliverPhoto is the photo variant of Deliver.
func (n *Notifier) DeliverPhoto(ctx context.Context, userID uint64, photoRef, caption string) error {
	return n.messenger.SendPhoto(ctx, userID, photoRef, caption)
}

func (n *Notifier) dropped(userID uint64, err error) {
	metrics.NotificationsDropped.Inc()
	n.logger.Debug("best-effort notification dropped", "user_id", userID, "err", err)
}
