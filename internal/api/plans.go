package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/identity"
)

type exerciseRequest struct {
	ID            string   `json:"id" validate:"required,max=200"`
	Name          string   `json:"name" validate:"required,max=200"`
	TargetMuscles []string `json:"target_muscles"`
	Sets          int      `json:"sets" validate:"min=0,max=50"`
	Reps          string   `json:"reps" validate:"max=50"`
	RestSeconds   int      `json:"rest_seconds" validate:"min=0,max=3600"`
	Equipment     string   `json:"equipment"`
	Notes         string   `json:"notes" validate:"max=500"`
}

type workoutDayRequest struct {
	Day       string            `json:"day" validate:"required"`
	Name      string            `json:"name"`
	Focus     string            `json:"focus"`
	Exercises []exerciseRequest `json:"exercises" validate:"dive"`
}

type trainingPlanRequest struct {
	ID          string              `json:"id"`
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description"`
	DaysPerWeek int                 `json:"days_per_week" validate:"min=0,max=7"`
	WorkoutDays []workoutDayRequest `json:"workout_days" validate:"max=7,dive"`
}

type nutritionPlanRequest struct {
	Goals      *domain.NutritionGoals `json:"goals"`
	WeeklyPlan *domain.WeeklyMealPlan `json:"weekly_plan"`
}

// PlanHandler serves the training and nutrition plans.
type PlanHandler struct {
	*Handler
	now func() time.Time
}

// NewPlanHandler creates a plan handler.
func NewPlanHandler(base *Handler) *PlanHandler {
	return &PlanHandler{Handler: base, now: time.Now}
}

// RegisterRoutes registers plan routes.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/plan", func(r chi.Router) {
		r.Get("/training", h.GetTraining)
		r.Put("/training", h.PutTraining)
		r.Get("/nutrition", h.GetNutrition)
		r.Put("/nutrition", h.PutNutrition)
	})
}

// GetTraining returns the training plan or {"plan": null}.
func (h *PlanHandler) GetTraining(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	plan, err := h.repo.GetTrainingPlan(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load training plan", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load training plan")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// PutTraining replaces the training plan.
func (h *PlanHandler) PutTraining(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	var req trainingPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan := &domain.TrainingProgram{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		DaysPerWeek: req.DaysPerWeek,
		UpdatedAt:   h.now().UTC(),
	}
	if plan.ID == "" {
		plan.ID = userID + "_training"
	}
	for _, d := range req.WorkoutDays {
		day := domain.WorkoutDay{Day: d.Day, Name: d.Name, Focus: d.Focus, Exercises: make([]domain.Exercise, 0, len(d.Exercises))}
		for _, e := range d.Exercises {
			day.Exercises = append(day.Exercises, domain.Exercise(e))
		}
		plan.WorkoutDays = append(plan.WorkoutDays, day)
	}

	if err := h.repo.SaveTrainingPlan(r.Context(), userID, plan); err != nil {
		slog.Error("failed to save training plan", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save training plan")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// GetNutrition returns goals and weekly plan, either of which may be null.
func (h *PlanHandler) GetNutrition(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	goals, err := h.repo.GetNutritionGoals(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load nutrition goals", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load nutrition plan")
		return
	}
	weekly, err := h.repo.GetWeeklyMealPlan(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load meal plan", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load nutrition plan")
		return
	}
	JSON(w, http.StatusOK, domain.NutritionPlan{Goals: goals, WeeklyPlan: weekly})
}

// PutNutrition writes the parts present in the body in one transaction.
func (h *PlanHandler) PutNutrition(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	var req nutritionPlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Goals == nil && req.WeeklyPlan == nil {
		Error(w, http.StatusBadRequest, "goals or weekly_plan is required")
		return
	}
	if g := req.Goals; g != nil && (g.Calories < 0 || g.Protein < 0 || g.Carbs < 0 || g.Fat < 0) {
		Error(w, http.StatusBadRequest, "nutrition goals must not be negative")
		return
	}

	if err := h.repo.SaveNutritionPlan(r.Context(), userID, req.Goals, req.WeeklyPlan); err != nil {
		slog.Error("failed to save nutrition plan", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save nutrition plan")
		return
	}
	h.GetNutrition(w, r)
}
