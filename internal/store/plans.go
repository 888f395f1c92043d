package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
)

const (
	upsertTrainingPlan = `
	INSERT INTO training_plans (user_id, plan_json, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET plan_json = excluded.plan_json, updated_at = excluded.updated_at`
	upsertNutritionGoals = `
	INSERT INTO nutrition_goals (user_id, goals_json, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET goals_json = excluded.goals_json, updated_at = excluded.updated_at`
	upsertWeeklyMealPlan = `
	INSERT INTO weekly_meal_plans (user_id, plan_json, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET plan_json = excluded.plan_json, updated_at = excluded.updated_at`
)

// GetTrainingPlan returns the user's training program.
func (s *SQLiteStore) GetTrainingPlan(ctx context.Context, userID string) (*domain.TrainingProgram, error) {
	var p domain.TrainingProgram
	ok, err := s.getJSON(ctx, "get training plan", `SELECT plan_json FROM training_plans WHERE user_id = ?`, &p, userID)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SaveTrainingPlan replaces the user's training program.
func (s *SQLiteStore) SaveTrainingPlan(ctx context.Context, userID string, plan *domain.TrainingProgram) error {
	if plan == nil {
		return fmt.Errorf("save training plan: nil plan")
	}
	raw, err := encode(plan)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "save training plan", upsertTrainingPlan, userID, raw, time.Now().Unix())
	return err
}

// GetNutritionGoals returns the user's macro targets.
func (s *SQLiteStore) GetNutritionGoals(ctx context.Context, userID string) (*domain.NutritionGoals, error) {
	var g domain.NutritionGoals
	ok, err := s.getJSON(ctx, "get nutrition goals", `SELECT goals_json FROM nutrition_goals WHERE user_id = ?`, &g, userID)
	if err != nil || !ok {
		return nil, err
	}
	return &g, nil
}

// SaveNutritionGoals replaces the user's macro targets.
func (s *SQLiteStore) SaveNutritionGoals(ctx context.Context, userID string, goals *domain.NutritionGoals) error {
	if goals == nil {
		return fmt.Errorf("save nutrition goals: nil goals")
	}
	raw, err := encode(goals)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "save nutrition goals", upsertNutritionGoals, userID, raw, time.Now().Unix())
	return err
}

// GetWeeklyMealPlan returns the user's meal plan.
func (s *SQLiteStore) GetWeeklyMealPlan(ctx context.Context, userID string) (*domain.WeeklyMealPlan, error) {
	var w domain.WeeklyMealPlan
	ok, err := s.getJSON(ctx, "get meal plan", `SELECT plan_json FROM weekly_meal_plans WHERE user_id = ?`, &w, userID)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

// SaveWeeklyMealPlan replaces the user's meal plan.
func (s *SQLiteStore) SaveWeeklyMealPlan(ctx context.Context, userID string, plan *domain.WeeklyMealPlan) error {
	if plan == nil {
		return fmt.Errorf("save meal plan: nil plan")
	}
	raw, err := encode(plan)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "save meal plan", upsertWeeklyMealPlan, userID, raw, time.Now().Unix())
	return err
}

// SaveNutritionPlan writes goals and meal plan in one transaction.
func (s *SQLiteStore) SaveNutritionPlan(ctx context.Context, userID string, goals *domain.NutritionGoals, weekly *domain.WeeklyMealPlan) error {
	var goalsRaw, weeklyRaw string
	var err error
	if goals != nil {
		if goalsRaw, err = encode(goals); err != nil {
			return err
		}
	}
	if weekly != nil {
		if weeklyRaw, err = encode(weekly); err != nil {
			return err
		}
	}

	now := time.Now().Unix()
	return s.inTx(ctx, "save nutrition plan", func(tx *sql.Tx) error {
		if goals != nil {
			if _, err := tx.ExecContext(ctx, upsertNutritionGoals, userID, goalsRaw, now); err != nil {
				return err
			}
		}
		if weekly != nil {
			if _, err := tx.ExecContext(ctx, upsertWeeklyMealPlan, userID, weeklyRaw, now); err != nil {
				return err
			}
		}
		return nil
	})
}
