package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ashureev/fitcoach/internal/api"
	"github.com/ashureev/fitcoach/internal/applier"
	"github.com/ashureev/fitcoach/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Handler serves the coaching conversation endpoints.
type Handler struct {
	svc         *Service
	rateLimiter *RateLimiter
	validate    *validator.Validate
	maxBodySize int64
}

// RateLimiter implements a per-user sliding-window rate limiter.
// The key is userID only, not userID:sessionID, so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a new rate limiter and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := fresh(r.requests[key], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	r.once.Do(func() { close(r.done) })
}

// startEviction periodically removes expired keys so the map does not grow
// without bound.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
			}
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				if kept := fresh(times, cutoff); len(kept) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = kept
				}
			}
			r.mu.Unlock()
		}
	}()
}

func fresh(times []time.Time, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// NewHandler creates the conversation handler.
func NewHandler(svc *Service, limiter *RateLimiter) *Handler {
	return &Handler{
		svc:         svc,
		rateLimiter: limiter,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		maxBodySize: defaultMaxRequestBodySize,
	}
}

// RegisterRoutes registers the coaching routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/coach", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/messages", h.HandleHistory)
		r.Delete("/messages", h.HandleClearHistory)
		r.Get("/proposal", h.HandlePending)
		r.Post("/proposal/accept", h.HandleAccept)
		r.Post("/proposal/reject", h.HandleReject)
		r.Get("/analysis", h.HandleListAnalyses)
		r.Post("/analysis", h.HandleRunAnalysis)
	})
}

// Close releases handler resources.
func (h *Handler) Close() {
	if h.rateLimiter != nil {
		h.rateLimiter.Close()
	}
}

// HandleChat handles POST /api/coach/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, http.StatusBadRequest, "message is required and must be at most 4000 characters")
		return
	}

	slog.Info("coach chat request",
		"user_id", userID,
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	resp, err := h.svc.SendMessage(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		h.writeError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleHistory handles GET /api/coach/messages.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	msgs, err := h.svc.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// HandleClearHistory handles DELETE /api/coach/messages.
func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if err := h.svc.ClearHistory(r.Context(), userID); err != nil {
		h.writeError(w, userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePending handles GET /api/coach/proposal.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	p := h.svc.PendingProposal(identity.UserIDFromContext(r.Context()))
	api.JSON(w, http.StatusOK, map[string]any{"proposal": p})
}

// HandleAccept handles POST /api/coach/proposal/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	resp, err := h.svc.AcceptProposal(r.Context(), userID)
	if err != nil {
		h.writeError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleReject handles POST /api/coach/proposal/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	resp, err := h.svc.RejectProposal(r.Context(), userID)
	if err != nil {
		h.writeError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleListAnalyses handles GET /api/coach/analysis.
func (h *Handler) HandleListAnalyses(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	results, err := h.svc.Analyses(r.Context(), userID)
	if err != nil {
		h.writeError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"analyses": results})
}

// HandleRunAnalysis handles POST /api/coach/analysis.
func (h *Handler) HandleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	resp, err := h.svc.RunAnalysis(r.Context(), userID)
	if err != nil {
		h.writeError(w, userID, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ErrBusy):
		api.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptyMessage):
		api.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, applier.ErrNoPendingProposal):
		api.Error(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("coach request failed", "user_id", userID, "error", err)
		api.Error(w, http.StatusInternalServerError, "internal error")
	}
}
