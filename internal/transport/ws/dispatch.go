package ws

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oggyb/match-relay/internal/intent"
	"github.com/oggyb/match-relay/internal/service/registry"
	"github.com/oggyb/match-relay/internal/service/relay"
)

// Inbound event types.
const (
	InFind          = "find"
	InLike          = "like"
	InChat          = "chat"
	InRequests      = "requests"
	InAccept        = "accept"
	InDecline       = "decline"
	InClearRequests = "clear_requests"
	InStop          = "stop"
	InStatus        = "status"
	InPreference    = "preference"
	InReport        = "report"
	InCancel        = "cancel"
	InText          = "text"
	InPhoto         = "photo"
)

var errUnknownEvent = errors.New("unknown event type")

// Inbound is one client → server message. Fields are used per Type.
type Inbound struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id,omitempty"`
	RequestID  uint64 `json:"request_id,omitempty"`
	Text       string `json:"text,omitempty"`
	PhotoRef   string `json:"photo_ref,omitempty"`
	Caption    string `json:"caption,omitempty"`
	Preference string `json:"preference,omitempty"`
}

// Dispatcher routes inbound events to the domain services. Services send
// user-facing notices themselves; the returned Event carries data only.
type Dispatcher struct {
	svc    *registry.Services
	logger *slog.Logger
}

func NewDispatcher(svc *registry.Services, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, logger: logger}
}

// Dispatch handles one event from userID. A nil Event means nothing to reply.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uint64, in Inbound) (*Event, error) {
	current, err := d.svc.Moderation.Intent(ctx, userID)
	if err != nil {
		// intent store down: fall back to plain routing
		d.logger.Warn("intent lookup failed", "user_id", userID, "err", err)
		current = intent.Intent{}
	}

	switch in.Type {
	case InFind:
		c, err := d.svc.Matching.NextCandidate(ctx, userID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return &Event{Type: EventCandidate, Text: "No new profiles right now. Check back later!"}, nil
		}
		return &Event{Type: EventCandidate, PhotoRef: c.PhotoRef, Data: c}, nil

	case InLike:
		res, err := d.svc.Matching.Like(ctx, userID, in.UserID)
		if err != nil {
			return nil, err
		}
		return ack(res), nil

	case InChat:
		out, err := d.svc.Sessions.RequestChat(ctx, userID, in.UserID)
		if err != nil {
			return nil, err
		}
		return ack(map[string]any{"outcome": out}), nil

	case InRequests:
		reqs, err := d.svc.Sessions.ListRequests(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Event{Type: EventRequests, Data: reqs}, nil

	case InAccept:
		partner, err := d.svc.Sessions.Accept(ctx, userID, in.RequestID)
		if err != nil {
			return nil, err
		}
		return ack(map[string]any{"partner_id": partner}), nil

	case InDecline:
		if err := d.svc.Sessions.Decline(ctx, userID, in.RequestID); err != nil {
			return nil, err
		}
		return nil, nil

	case InClearRequests:
		n, err := d.svc.Sessions.ClearRequests(ctx, userID)
		if err != nil {
			return nil, err
		}
		return ack(map[string]any{"cleared": n}), nil

	case InStop:
		if _, _, err := d.svc.Sessions.Stop(ctx, userID); err != nil {
			return nil, err
		}
		return nil, nil

	case InStatus:
		st, err := d.svc.Sessions.State(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Event{Type: EventStatus, Data: st}, nil

	case InPreference:
		pref, err := d.svc.Matching.SetPreference(ctx, userID, in.Preference)
		if err != nil {
			return nil, err
		}
		return ack(map[string]any{"preference": pref}), nil

	case InReport:
		target, err := d.svc.Moderation.BeginReport(ctx, userID, in.UserID)
		if err != nil {
			return nil, err
		}
		return ack(map[string]any{"target_id": target}), nil

	case InCancel:
		if _, err := d.svc.Moderation.Cancel(ctx, userID); err != nil {
			return nil, err
		}
		return nil, nil

	case InText:
		if current.Kind == intent.KindReportReason {
			id, err := d.svc.Moderation.SubmitReport(ctx, userID, in.Text)
			if err != nil {
				return nil, err
			}
			return ack(map[string]any{"report_id": id}), nil
		}
		return d.relay(ctx, userID, relay.Content{Text: in.Text})

	case InPhoto:
		return d.relay(ctx, userID, relay.Content{PhotoRef: in.PhotoRef, Caption: in.Caption})

	default:
		return nil, errUnknownEvent
	}
}

func (d *Dispatcher) relay(ctx context.Context, userID uint64, c relay.Content) (*Event, error) {
	del, err := d.svc.Relay.Relay(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	if del.Delivered {
		// delivery receipts are silent
		return nil, nil
	}
	return ack(del), nil
}

func ack(data any) *Event {
	return &Event{Type: EventAck, Data: data}
}
