package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/fitcoach/internal/cost"
)

const healthCheckTimeout = 5 * time.Second

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AssistantStatus reports whether the completion backend is configured.
type AssistantStatus interface {
	Configured() bool
	Model() string
}

// SpendReporter exposes today's estimated spend.
type SpendReporter interface {
	Snapshot() cost.Snapshot
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        Pinger
	assistant AssistantStatus
	spend     SpendReporter
}

// NewHealthHandler creates a new health handler. assistant and spend may be nil.
func NewHealthHandler(db Pinger, assistant AssistantStatus, spend SpendReporter) *HealthHandler {
	return &HealthHandler{db: db, assistant: assistant, spend: spend}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.assistant != nil {
		checks["assistant"] = "not_configured"
		if h.assistant.Configured() {
			checks["assistant"] = "ok"
			status["model"] = h.assistant.Model()
		}
	}
	if h.spend != nil {
		status["spend"] = h.spend.Snapshot()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
