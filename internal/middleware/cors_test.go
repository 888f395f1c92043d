package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serveCORS(opts CORSOptions, method, origin string, preflight bool) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest(method, "/api/coach/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	CORS(opts)(next).ServeHTTP(rec, req)
	return rec
}

func TestCORSExplicitOrigin(t *testing.T) {
	opts := CORSOptions{
		AllowedOrigins: []string{"https://coach.example.com"},
		ExtraHeaders:   []string{"X-Trace-ID"},
		MaxAge:         10 * time.Minute,
	}
	rec := serveCORS(opts, http.MethodOptions, "https://coach.example.com", true)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://coach.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Content-Type, X-Coach-Session-ID, X-Trace-ID", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	rec := serveCORS(CORSOptions{AllowedOrigins: []string{"*"}}, http.MethodGet, "http://localhost:5173", false)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	rec := serveCORS(CORSOptions{AllowedOrigins: []string{"https://coach.example.com"}}, http.MethodGet, "https://evil.example.com", false)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSPlainOptionsReachesHandler(t *testing.T) {
	rec := serveCORS(CORSOptions{AllowedOrigins: []string{"*"}}, http.MethodOptions, "", false)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
