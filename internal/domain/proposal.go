package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProposalType tags the variant of a proposal's changes.
type ProposalType string

const (
	ProposalExerciseReplacement ProposalType = "exercise_replacement"
	ProposalWorkoutModification ProposalType = "workout_modification"
	ProposalNutritionAdjustment ProposalType = "nutrition_adjustment"
	ProposalProgressAnalysis    ProposalType = "progress_analysis"
)

// Priority ranks a proposal or recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps free-form input onto a known priority, defaulting to medium.
func NormalizePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Changes is the variant-specific payload of a proposal. The set of
// implementations is closed to this package.
type Changes interface {
	ProposalType() ProposalType
	isChanges()
}

// Proposal is a user-reviewable description of a pending plan mutation.
type Proposal struct {
	ID          string       `json:"id"`
	Type        ProposalType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Changes     Changes      `json:"changes"`
	Reasoning   string       `json:"reasoning"`
	Priority    Priority     `json:"priority"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewProposal builds a proposal whose Type always matches its Changes variant.
func NewProposal(title, description, reasoning string, priority Priority, changes Changes) *Proposal {
	return &Proposal{
		ID:          uuid.NewString(),
		Type:        changes.ProposalType(),
		Title:       title,
		Description: description,
		Changes:     changes,
		Reasoning:   reasoning,
		Priority:    priority,
		Timestamp:   time.Now().UTC(),
	}
}

// ReplacementExercise describes the exercise that takes a target's place.
// Nil numeric fields keep the target's planned values.
type ReplacementExercise struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name" validate:"required"`
	TargetMuscles []string `json:"targetMuscles,omitempty"`
	Sets          *int     `json:"sets,omitempty"`
	Reps          *string  `json:"reps,omitempty"`
	RestSeconds   *int     `json:"restSeconds,omitempty"`
	Equipment     string   `json:"equipment,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// ExerciseReplacement swaps one exercise of the training plan.
type ExerciseReplacement struct {
	ExerciseID   string              `json:"exerciseId,omitempty"`
	ExerciseName string              `json:"exerciseName,omitempty"`
	Day          string              `json:"day,omitempty"`
	NewExercise  ReplacementExercise `json:"newExercise" validate:"required"`
}

func (ExerciseReplacement) ProposalType() ProposalType { return ProposalExerciseReplacement }
func (ExerciseReplacement) isChanges()                 {}

// WorkoutPatch is a shallow patch over a TrainingProgram. A non-nil field
// replaces the program's value wholesale.
type WorkoutPatch struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	DaysPerWeek *int         `json:"daysPerWeek,omitempty"`
	WorkoutDays []WorkoutDay `json:"workoutDays,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (w WorkoutPatch) IsEmpty() bool {
	return w.Name == nil && w.Description == nil && w.DaysPerWeek == nil && w.WorkoutDays == nil
}

// ApplyTo returns a copy of p with the patch merged on top.
func (w WorkoutPatch) ApplyTo(p *TrainingProgram) *TrainingProgram {
	out := p.Clone()
	if out == nil {
		out = &TrainingProgram{ID: uuid.NewString()}
	}
	if w.Name != nil {
		out.Name = *w.Name
	}
	if w.Description != nil {
		out.Description = *w.Description
	}
	if w.DaysPerWeek != nil {
		out.DaysPerWeek = *w.DaysPerWeek
	}
	if w.WorkoutDays != nil {
		out.WorkoutDays = (&TrainingProgram{WorkoutDays: w.WorkoutDays}).Clone().WorkoutDays
	}
	return out
}

// WorkoutModification applies a shallow patch to the training plan.
type WorkoutModification struct {
	WorkoutChanges WorkoutPatch `json:"workoutChanges"`
}

func (WorkoutModification) ProposalType() ProposalType { return ProposalWorkoutModification }
func (WorkoutModification) isChanges()                 {}

// NutritionGoalsPatch is a shallow patch over NutritionGoals.
type NutritionGoalsPatch struct {
	Goal     *string  `json:"goal,omitempty"`
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
}

// ApplyTo returns the goals with the patch merged on top.
func (n NutritionGoalsPatch) ApplyTo(g *NutritionGoals) NutritionGoals {
	var out NutritionGoals
	if g != nil {
		out = *g
	}
	if n.Goal != nil {
		out.Goal = *n.Goal
	}
	if n.Calories != nil {
		out.Calories = *n.Calories
	}
	if n.Protein != nil {
		out.Protein = *n.Protein
	}
	if n.Carbs != nil {
		out.Carbs = *n.Carbs
	}
	if n.Fat != nil {
		out.Fat = *n.Fat
	}
	return out
}

// NutritionAdjustment patches goals and/or replaces individual meal plan days.
type NutritionAdjustment struct {
	Goals      *NutritionGoalsPatch `json:"goals,omitempty"`
	WeeklyPlan map[string][]Meal    `json:"weeklyPlan,omitempty"`
}

func (NutritionAdjustment) ProposalType() ProposalType { return ProposalNutritionAdjustment }
func (NutritionAdjustment) isChanges()                 {}

// MergeWeeklyPlan returns a copy of w where every day named in the
// adjustment replaces the existing day.
func (n NutritionAdjustment) MergeWeeklyPlan(w *WeeklyMealPlan) *WeeklyMealPlan {
	out := w.Clone()
	if out == nil {
		out = &WeeklyMealPlan{Days: make(map[string][]Meal, len(n.WeeklyPlan))}
	}
	if out.Days == nil {
		out.Days = make(map[string][]Meal, len(n.WeeklyPlan))
	}
	for day, meals := range n.WeeklyPlan {
		out.Days[day] = append([]Meal(nil), meals...)
	}
	return out
}

// ProgressAnalysis is an informational proposal; accepting it writes nothing.
type ProgressAnalysis struct {
	Summary string   `json:"summary,omitempty"`
	Focus   []string `json:"focus,omitempty"`
}

func (ProgressAnalysis) ProposalType() ProposalType { return ProposalProgressAnalysis }
func (ProgressAnalysis) isChanges()                 {}
