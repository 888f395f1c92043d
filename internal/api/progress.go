package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/identity"
)

type weightRequest struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight" validate:"required,gt=0,lte=500"`
}

type setRequest struct {
	Weight float64 `json:"weight" validate:"min=0"`
	Reps   int     `json:"reps" validate:"min=0,max=1000"`
}

type sessionExerciseRequest struct {
	Name string       `json:"name" validate:"required,max=200"`
	Sets []setRequest `json:"sets" validate:"dive"`
}

type workoutRequest struct {
	ID        string                   `json:"id"`
	Date      time.Time                `json:"date"`
	StartedAt *time.Time               `json:"started_at"`
	Completed bool                     `json:"completed"`
	Exercises []sessionExerciseRequest `json:"exercises" validate:"dive"`
}

// ProgressHandler records and serves body-weight and workout logs.
type ProgressHandler struct {
	*Handler
	now func() time.Time
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(base *Handler) *ProgressHandler {
	return &ProgressHandler{Handler: base, now: time.Now}
}

// RegisterRoutes registers progress routes.
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/progress", h.GetProgress)
	r.Post("/api/progress/weights", h.AddWeight)
	r.Post("/api/progress/workouts", h.LogWorkout)
}

// GetProgress returns all recorded progress.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	snap, err := h.repo.GetProgress(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load progress", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	if snap == nil {
		snap = &domain.ProgressSnapshot{}
	}
	if snap.Weights == nil {
		snap.Weights = []domain.WeightEntry{}
	}
	if snap.Workouts == nil {
		snap.Workouts = []domain.WorkoutSession{}
	}
	JSON(w, http.StatusOK, snap)
}

// AddWeight records a body-weight reading. A missing date means now.
func (h *ProgressHandler) AddWeight(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	var req weightRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry := domain.WeightEntry{Date: req.Date, Weight: req.Weight}
	if entry.Date.IsZero() {
		entry.Date = h.now().UTC()
	}
	if err := h.repo.AddWeightEntry(r.Context(), userID, entry); err != nil {
		slog.Error("failed to add weight entry", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to record weight")
		return
	}
	JSON(w, http.StatusCreated, entry)
}

// LogWorkout records or replaces a workout session.
func (h *ProgressHandler) LogWorkout(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	var req workoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	session := domain.WorkoutSession{
		ID:        req.ID,
		Date:      req.Date,
		StartedAt: req.StartedAt,
		Completed: req.Completed,
		Exercises: make([]domain.SessionExercise, 0, len(req.Exercises)),
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Date.IsZero() {
		session.Date = h.now().UTC()
	}
	for _, e := range req.Exercises {
		ex := domain.SessionExercise{Name: e.Name, Sets: make([]domain.SetLog, 0, len(e.Sets))}
		for _, s := range e.Sets {
			ex.Sets = append(ex.Sets, domain.SetLog(s))
		}
		session.Exercises = append(session.Exercises, ex)
	}

	if err := h.repo.SaveWorkoutSession(r.Context(), userID, session); err != nil {
		slog.Error("failed to save workout session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to record workout")
		return
	}
	JSON(w, http.StatusCreated, session)
}
