package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/promptctx"
)

// ContextStore is what the loader reads from.
type ContextStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	GetTrainingPlan(ctx context.Context, userID string) (*domain.TrainingProgram, error)
	GetNutritionGoals(ctx context.Context, userID string) (*domain.NutritionGoals, error)
	GetWeeklyMealPlan(ctx context.Context, userID string) (*domain.WeeklyMealPlan, error)
	GetProgress(ctx context.Context, userID string) (*domain.ProgressSnapshot, error)
	ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error)
}

// Loader gathers a user's profile, plans, progress and transcript.
type Loader struct {
	store ContextStore
}

// NewLoader creates a loader over store.
func NewLoader(store ContextStore) *Loader {
	return &Loader{store: store}
}

// LoadInput reads everything the context builder needs. Reads run
// concurrently; the first failure cancels the rest.
func (l *Loader) LoadInput(ctx context.Context, userID string) (promptctx.Input, error) {
	var (
		in      promptctx.Input
		profile *domain.UserProfile
		goals   *domain.NutritionGoals
		weekly  *domain.WeeklyMealPlan
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = l.store.GetProfile(gctx, userID)
		return wrap("profile", err)
	})
	g.Go(func() (err error) {
		in.Training, err = l.store.GetTrainingPlan(gctx, userID)
		return wrap("training plan", err)
	})
	g.Go(func() (err error) {
		goals, err = l.store.GetNutritionGoals(gctx, userID)
		return wrap("nutrition goals", err)
	})
	g.Go(func() (err error) {
		weekly, err = l.store.GetWeeklyMealPlan(gctx, userID)
		return wrap("meal plan", err)
	})
	g.Go(func() (err error) {
		in.Progress, err = l.store.GetProgress(gctx, userID)
		return wrap("progress", err)
	})
	g.Go(func() (err error) {
		in.History, err = l.store.ListMessages(gctx, userID)
		return wrap("transcript", err)
	})
	if err := g.Wait(); err != nil {
		return promptctx.Input{}, err
	}

	if profile != nil {
		in.Profile = *profile
	}
	if goals != nil || weekly != nil {
		in.Nutrition = &domain.NutritionPlan{Goals: goals, WeeklyPlan: weekly}
	}
	return in, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
