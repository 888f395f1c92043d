package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/fitcoach/internal/backend"
	"github.com/ashureev/fitcoach/internal/identity"
)

func newTestRouter(t *testing.T, sender Sender, limit int) http.Handler {
	t.Helper()
	svc, _ := newTestService(t, newTestStore(t), sender)
	limiter := NewRateLimiter(limit, time.Minute)
	h := NewHandler(svc, limiter)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := identity.WithIdentity(req.Context(), testUser, "tab")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	h := newTestRouter(t, &scriptedSender{responses: []backend.Response{chat("Stretch first.")}}, 10)

	rec := do(t, h, http.MethodPost, "/api/coach/chat", `{"message":"warm up?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Stretch first.", resp.Reply().Content)

	rec = do(t, h, http.MethodGet, "/api/coach/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Len(t, history.Messages, 2)

	rec = do(t, h, http.MethodDelete, "/api/coach/messages", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleChatValidation(t *testing.T) {
	h := newTestRouter(t, &scriptedSender{responses: []backend.Response{chat("x")}}, 10)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"message":`, http.StatusBadRequest},
		{"missing message", `{}`, http.StatusBadRequest},
		{"too long", `{"message":"` + strings.Repeat("a", 4001) + `"}`, http.StatusBadRequest},
		{"blank", `{"message":"   "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/coach/chat", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	h := newTestRouter(t, &scriptedSender{responses: []backend.Response{chat("ok")}}, 1)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/coach/chat", `{"message":"one"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/coach/chat", `{"message":"two"}`).Code)
}

func TestHandleProposalLifecycle(t *testing.T) {
	h := newTestRouter(t, &scriptedSender{responses: []backend.Response{replacePushUp()}}, 10)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/coach/proposal/accept", "").Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/coach/chat", `{"message":"swap push ups"}`).Code)

	rec := do(t, h, http.MethodGet, "/api/coach/proposal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Swap Push Up")

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/coach/proposal/reject", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/coach/proposal/reject", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/coach/proposal/accept", "").Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	defer rl.Close()

	assert.True(t, rl.Allow("u"))
	assert.True(t, rl.Allow("u"))
	assert.False(t, rl.Allow("u"))
	assert.True(t, rl.Allow("other"))
}
