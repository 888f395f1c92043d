// Package agent orchestrates coaching conversations: context loading,
// cached backend calls, proposal parsing and the accept/reject flow.
package agent

import (
	"errors"

	"github.com/ashureev/fitcoach/internal/domain"
)

var (
	// ErrBusy is returned while another message of the same conversation is in flight.
	ErrBusy = errors.New("a message is already being processed")
	// ErrEmptyMessage is returned for blank chat input.
	ErrEmptyMessage = errors.New("message is required")
)

// ChatRequest is the body of POST /api/coach/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// ChatResponse is the outcome of one conversation step.
type ChatResponse struct {
	// Messages are the transcript entries appended by this step.
	Messages []domain.ChatMessage   `json:"messages"`
	Proposal *domain.Proposal       `json:"proposal,omitempty"`
	Analysis *domain.AnalysisResult `json:"analysis,omitempty"`
	// Training and Nutrition carry the published plan after an applied change.
	Training  *domain.TrainingProgram `json:"training,omitempty"`
	Nutrition *domain.NutritionPlan   `json:"nutrition,omitempty"`
	Cached   bool                   `json:"cached"`
	Fallback bool                   `json:"fallback"`
	// WithinBudget is false once the daily spend estimate passed its ceiling.
	WithinBudget bool `json:"within_budget"`
}

// Reply returns the last assistant message of the step.
func (r *ChatResponse) Reply() domain.ChatMessage {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == domain.RoleAssistant {
			return r.Messages[i]
		}
	}
	return domain.ChatMessage{}
}
