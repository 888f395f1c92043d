package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/identity"
)

type countingGauge struct {
	mu sync.Mutex
	n  float64
}

func (g *countingGauge) WatcherDelta(d float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n += d
}

func (g *countingGauge) value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func newTestServer(t *testing.T, hub *Hub, userID string) *httptest.Server {
	t.Helper()
	h := NewHandler(hub, "*", true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithIdentity(r.Context(), userID, r.URL.Query().Get("session_id"))
		h.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func waitForWatchers(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Watchers(userID) == n },
		2*time.Second, 10*time.Millisecond)
}

func TestHubDeliversNotificationsToEverySession(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(gauge)
	srv := newTestServer(t, hub, "u1")

	a := dial(t, srv, "tab-a")
	b := dial(t, srv, "tab-b")
	assert.Equal(t, "connected", readFrame(t, a)["type"])
	assert.Equal(t, "connected", readFrame(t, b)["type"])
	waitForWatchers(t, hub, "u1", 2)
	assert.InDelta(t, 2, gauge.value(), 0)

	n := domain.Notification{Type: domain.NotificationSuccess, Title: "Plan updated", Message: "Swapped Push Up"}
	require.NoError(t, hub.Notify(context.Background(), "u1", n))

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, "notification", frame["type"])
		body, ok := frame["notification"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Plan updated", body["title"])
	}
}

func TestHubSkipsUsersWithoutWatchers(t *testing.T) {
	hub := NewHub(nil)
	err := hub.Notify(context.Background(), "nobody", domain.Notification{Type: domain.NotificationInfo, Title: "x", Message: "y"})
	assert.NoError(t, err)
}

func TestHubPushMessage(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub, "u1")
	conn := dial(t, srv, "tab")
	readFrame(t, conn)
	waitForWatchers(t, hub, "u1", 1)

	msg := domain.NewChatMessage(domain.RoleAssistant, "Weekly check-in ready")
	require.NoError(t, hub.PushMessage(context.Background(), "u1", msg))

	frame := readFrame(t, conn)
	assert.Equal(t, "message", frame["type"])
	body, ok := frame["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Weekly check-in ready", body["content"])
}

func TestHandlerAnswersPing(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub, "u1")
	conn := dial(t, srv, "tab")
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestHubUnregistersOnClose(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(gauge)
	srv := newTestServer(t, hub, "u1")
	conn := dial(t, srv, "tab")
	readFrame(t, conn)
	waitForWatchers(t, hub, "u1", 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	waitForWatchers(t, hub, "u1", 0)
	assert.InDelta(t, 0, gauge.value(), 0)
}

func TestHubCloseUser(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub, "u1")
	conn := dial(t, srv, "tab")
	readFrame(t, conn)
	waitForWatchers(t, hub, "u1", 1)

	hub.CloseUser("u1")
	assert.Equal(t, 0, hub.Watchers("u1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(nil), "https://coach.example", false)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))
	req.Header.Set("Origin", "https://coach.example")
	assert.True(t, h.checkOrigin(req))
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	h := NewHandler(NewHub(nil), "*", true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
