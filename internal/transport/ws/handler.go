package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/oggyb/match-relay/internal/auth"
	svcErr "github.com/oggyb/match-relay/internal/errors"
)

const maxMessageSize = 64 << 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // token auth, not cookies
	},
}

// Handler upgrades /ws?token=<jwt> and runs the per-connection read loop.
type Handler struct {
	hub        *Hub
	issuer     *auth.Issuer
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewHandler(hub *Hub, issuer *auth.Issuer, dispatcher *Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, issuer: issuer, dispatcher: dispatcher, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}
	userID, err := h.issuer.Parse(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	// one event at a time keeps a user's messages in order
	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "user_id", userID, "err", err)
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			h.reply(userID, &Event{Type: EventError, Text: "Invalid message format"})
			continue
		}

		ev, err := h.dispatcher.Dispatch(ctx, userID, in)
		if err != nil {
			h.reply(userID, h.errorEvent(userID, in.Type, err))
			continue
		}
		if ev != nil {
			h.reply(userID, ev)
		}
	}
}

func (h *Handler) errorEvent(userID uint64, typ string, err error) *Event {
	if errors.Is(err, errUnknownEvent) {
		return &Event{Type: EventError, Text: "Unknown message type"}
	}
	if svcErr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.Error("event failed", "user_id", userID, "type", typ, "err", err)
	}
	return &Event{Type: EventError, Text: svcErr.UserMessage(err)}
}

func (h *Handler) reply(userID uint64, ev *Event) {
	if err := h.hub.Send(userID, *ev); err != nil {
		h.logger.Debug("reply dropped", "user_id", userID, "type", ev.Type, "err", err)
	}
}
