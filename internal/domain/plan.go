package domain

import (
	"time"
)

// Exercise is a single planned movement inside a workout day.
type Exercise struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TargetMuscles []string `json:"target_muscles,omitempty"`
	Sets          int      `json:"sets,omitempty"`
	Reps          string   `json:"reps,omitempty"`
	RestSeconds   int      `json:"rest_seconds,omitempty"`
	Equipment     string   `json:"equipment,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// WorkoutDay groups the exercises scheduled for one day.
type WorkoutDay struct {
	Day       string     `json:"day"`
	Name      string     `json:"name,omitempty"`
	Focus     string     `json:"focus,omitempty"`
	Exercises []Exercise `json:"exercises"`
}

// TrainingProgram is the canonical training plan owned by the Plan Store.
type TrainingProgram struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	DaysPerWeek int          `json:"days_per_week,omitempty"`
	WorkoutDays []WorkoutDay `json:"workout_days"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ExerciseRef locates an exercise node inside a program.
type ExerciseRef struct {
	Day           string
	DayIndex      int
	ExerciseIndex int
	Exercise      Exercise
}

// ExerciseCount returns the number of exercises across all days.
func (p *TrainingProgram) ExerciseCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, d := range p.WorkoutDays {
		n += len(d.Exercises)
	}
	return n
}

// Exercises returns references to every exercise in plan order.
func (p *TrainingProgram) Exercises() []ExerciseRef {
	if p == nil {
		return nil
	}
	refs := make([]ExerciseRef, 0, p.ExerciseCount())
	for di, d := range p.WorkoutDays {
		for ei, ex := range d.Exercises {
			refs = append(refs, ExerciseRef{Day: d.Day, DayIndex: di, ExerciseIndex: ei, Exercise: ex})
		}
	}
	return refs
}

// FindExercise returns the first exercise with the given id.
func (p *TrainingProgram) FindExercise(id string) (ExerciseRef, bool) {
	for _, ref := range p.Exercises() {
		if ref.Exercise.ID == id {
			return ref, true
		}
	}
	return ExerciseRef{}, false
}

// Clone returns a deep copy of the program.
func (p *TrainingProgram) Clone() *TrainingProgram {
	if p == nil {
		return nil
	}
	out := *p
	out.WorkoutDays = make([]WorkoutDay, len(p.WorkoutDays))
	for i, d := range p.WorkoutDays {
		day := d
		day.Exercises = make([]Exercise, len(d.Exercises))
		for j, ex := range d.Exercises {
			day.Exercises[j] = ex.clone()
		}
		out.WorkoutDays[i] = day
	}
	return &out
}

func (e Exercise) clone() Exercise {
	if e.TargetMuscles != nil {
		e.TargetMuscles = append([]string(nil), e.TargetMuscles...)
	}
	return e
}
