package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/identity"
)

type profileRequest struct {
	Name            string   `json:"name" validate:"max=100"`
	Age             int      `json:"age" validate:"omitempty,min=13,max=120"`
	Sex             string   `json:"sex" validate:"omitempty,oneof=male female other"`
	HeightCM        float64  `json:"height_cm" validate:"omitempty,gt=0,lte=300"`
	WeightKG        float64  `json:"weight_kg" validate:"omitempty,gt=0,lte=500"`
	Goals           []string `json:"goals" validate:"max=10,dive,required,max=100"`
	ExperienceLevel string   `json:"experience_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Equipment       []string `json:"equipment" validate:"max=30,dive,required,max=100"`
}

// ProfileHandler serves the questionnaire answers.
type ProfileHandler struct {
	*Handler
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(base *Handler) *ProfileHandler {
	return &ProfileHandler{Handler: base}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.PutProfile)
}

// GetProfile returns the stored profile, or an empty one.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		profile = &domain.UserProfile{UserID: userID}
	}
	JSON(w, http.StatusOK, profile)
}

// PutProfile replaces the profile.
func (h *ProfileHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile := &domain.UserProfile{
		UserID:          userID,
		Name:            req.Name,
		Age:             req.Age,
		Sex:             req.Sex,
		HeightCM:        req.HeightCM,
		WeightKG:        req.WeightKG,
		Goals:           req.Goals,
		ExperienceLevel: req.ExperienceLevel,
		Equipment:       req.Equipment,
	}
	if err := h.repo.SaveProfile(r.Context(), profile); err != nil {
		slog.Error("failed to save profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	JSON(w, http.StatusOK, profile)
}
