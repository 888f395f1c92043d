// Package notify pushes user-facing notifications to connected WebSocket clients.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/fitcoach/internal/domain"
)

const writeTimeout = 5 * time.Second

// Gauge tracks the number of connected watchers.
type Gauge interface {
	WatcherDelta(d float64)
}

// envelope is the wire format of every server-sent frame.
type envelope struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Message      *domain.ChatMessage  `json:"message,omitempty"`
}

// Hub manages active WebSocket connections per user and tab session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
	gauge  Gauge
}

// NewHub creates an empty hub. gauge may be nil.
func NewHub(gauge Gauge) *Hub {
	return &Hub{
		active: make(map[string]map[string]*websocket.Conn),
		gauge:  gauge,
	}
}

// Register adds a connection for a user/session, closing any connection it replaces.
func (h *Hub) Register(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*websocket.Conn)
	}

	existing, exists := h.active[userID][sessionID]
	if exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	if !exists {
		h.delta(1)
	}

	h.active[userID][sessionID] = conn
	slog.Info("notification watcher registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a connection if it is still the current one for its session.
func (h *Hub) Unregister(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.active[userID]
	if !ok {
		return
	}
	if current, exists := sessions[sessionID]; exists && current == conn {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(h.active, userID)
		}
		h.delta(-1)
		slog.Info("notification watcher unregistered", "user_id", userID, "session_id", sessionID)
	}
}

// Watchers returns the number of open connections for a user.
func (h *Hub) Watchers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID])
}

// Notify sends n to every connection of the user. Users without
// connections are skipped silently.
func (h *Hub) Notify(ctx context.Context, userID string, n domain.Notification) error {
	return h.broadcast(ctx, userID, envelope{Type: "notification", Notification: &n})
}

// PushMessage sends a transcript message produced outside a chat request.
func (h *Hub) PushMessage(ctx context.Context, userID string, msg domain.ChatMessage) error {
	return h.broadcast(ctx, userID, envelope{Type: "message", Message: &msg})
}

func (h *Hub) broadcast(ctx context.Context, userID string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.active[userID]))
	for _, c := range h.active[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		if err := c.Write(writeCtx, websocket.MessageText, data); err != nil {
			slog.Debug("notification write failed", "user_id", userID, "error", err)
			errs = append(errs, err)
		}
		cancel()
	}
	return errors.Join(errs...)
}

// CloseUser terminates every connection of a user.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.active[userID]
	if !ok {
		return
	}
	for sid, conn := range sessions {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
		h.delta(-1)
		slog.Info("notification watcher closed", "user_id", userID, "session_id", sid)
	}
	delete(h.active, userID)
}

func (h *Hub) delta(d float64) {
	if h.gauge != nil {
		h.gauge.WatcherDelta(d)
	}
}
