// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
)

// Repository is the persistence surface of the coaching service. Getters
// return a nil value and a nil error when nothing is stored.
type Repository interface {
	// Ping verifies database connectivity.
	Ping(ctx context.Context) error
	// Close closes the database connection.
	Close() error

	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
	// ActiveUserIDs lists users seen at or after since.
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error

	GetTrainingPlan(ctx context.Context, userID string) (*domain.TrainingProgram, error)
	SaveTrainingPlan(ctx context.Context, userID string, plan *domain.TrainingProgram) error
	GetNutritionGoals(ctx context.Context, userID string) (*domain.NutritionGoals, error)
	SaveNutritionGoals(ctx context.Context, userID string, goals *domain.NutritionGoals) error
	GetWeeklyMealPlan(ctx context.Context, userID string) (*domain.WeeklyMealPlan, error)
	SaveWeeklyMealPlan(ctx context.Context, userID string, plan *domain.WeeklyMealPlan) error
	// SaveNutritionPlan writes goals and meal plan in one transaction. Nil
	// arguments are left untouched.
	SaveNutritionPlan(ctx context.Context, userID string, goals *domain.NutritionGoals, weekly *domain.WeeklyMealPlan) error

	AddWeightEntry(ctx context.Context, userID string, entry domain.WeightEntry) error
	SaveWorkoutSession(ctx context.Context, userID string, session domain.WorkoutSession) error
	GetProgress(ctx context.Context, userID string) (*domain.ProgressSnapshot, error)

	// AppendMessages appends to the user's transcript in order.
	AppendMessages(ctx context.Context, userID string, msgs ...domain.ChatMessage) error
	// ListMessages returns the transcript oldest first.
	ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	ClearMessages(ctx context.Context, userID string) error

	// AppendAnalysis stores a result, keeping the newest MaxStoredAnalyses.
	AppendAnalysis(ctx context.Context, userID string, result domain.AnalysisResult) error
	LatestAnalysis(ctx context.Context, userID string) (*domain.AnalysisResult, error)
	// ListAnalyses returns stored results newest first.
	ListAnalyses(ctx context.Context, userID string) ([]domain.AnalysisResult, error)
	GetAnalysisMarkers(ctx context.Context, userID string) (domain.AnalysisMarkers, error)
	SetAnalysisMarkers(ctx context.Context, userID string, markers domain.AnalysisMarkers) error
}
