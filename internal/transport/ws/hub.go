package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oggyb/match-relay/internal/metrics"
)

// ErrOffline means the user has no open connection.
var ErrOffline = errors.New("user is not connected")

const writeWait = 10 * time.Second

// Outbound event types.
const (
	EventText      = "text"
	EventPhoto     = "photo"
	EventCandidate = "candidate"
	EventRequests  = "requests"
	EventStatus    = "status"
	EventAck       = "ack"
	EventError     = "error"
)

// Event is one server → client message.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex // gorilla allows one concurrent writer
}

// Hub tracks one connection per user and is the outbound message transport.
// A user who is offline, or whose write fails, is unreachable.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uint64]*conn
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[uint64]*conn),
		logger: logger,
	}
}

// Register binds ws to userID, closing any previous connection.
func (h *Hub) Register(userID uint64, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[userID]; ok {
		_ = old.ws.Close()
	} else {
		metrics.WSConnections.Inc()
	}
	h.conns[userID] = &conn{ws: ws}
	h.logger.Info("websocket connection registered", "user_id", userID)
}

// Unregister drops userID if ws is still its current connection.
func (h *Hub) Unregister(userID uint64, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[userID]
	if !ok || (ws != nil && c.ws != ws) {
		return
	}
	_ = c.ws.Close()
	delete(h.conns, userID)
	metrics.WSConnections.Dec()
	h.logger.Info("websocket connection unregistered", "user_id", userID)
}

func (h *Hub) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// Send writes ev to userID. A failed write unregisters the connection.
func (h *Hub) Send(userID uint64, ev Event) error {
	h.mu.RLock()
	c, ok := h.conns[userID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrOffline, userID)
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.ws.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()
	if err != nil {
		h.Unregister(userID, c.ws)
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

func (h *Hub) SendText(_ context.Context, userID uint64, text string) error {
	return h.Send(userID, Event{Type: EventText, Text: text})
}

func (h *Hub) SendPhoto(_ context.Context, userID uint64, photoRef, caption string) error {
	return h.Send(userID, Event{Type: EventPhoto, PhotoRef: photoRef, Text: caption})
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		_ = c.ws.Close()
		delete(h.conns, id)
		metrics.WSConnections.Dec()
	}
}
