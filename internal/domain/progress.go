package domain

import (
	"sort"
	"time"
)

// WeightEntry is one body-weight reading.
type WeightEntry struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// SetLog is one performed set.
type SetLog struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

// SessionExercise is an exercise as performed in a logged session.
type SessionExercise struct {
	Name string   `json:"name"`
	Sets []SetLog `json:"sets"`
}

// MaxWeight returns the heaviest set weight.
func (e SessionExercise) MaxWeight() float64 {
	var m float64
	for _, s := range e.Sets {
		if s.Weight > m {
			m = s.Weight
		}
	}
	return m
}

// Volume returns the sum of weight × reps over all sets.
func (e SessionExercise) Volume() float64 {
	var v float64
	for _, s := range e.Sets {
		v += s.Weight * float64(s.Reps)
	}
	return v
}

// WorkoutSession is a logged training session.
type WorkoutSession struct {
	ID        string            `json:"id"`
	Date      time.Time         `json:"date"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Completed bool              `json:"completed"`
	Exercises []SessionExercise `json:"exercises"`
}

func (w WorkoutSession) sortTime() time.Time {
	if w.StartedAt != nil && !w.StartedAt.IsZero() {
		return *w.StartedAt
	}
	return w.Date
}

// ProgressSnapshot is the progress data visible to the assistant.
type ProgressSnapshot struct {
	Weights  []WeightEntry    `json:"weights"`
	Workouts []WorkoutSession `json:"workouts"`
}

// IsEmpty reports whether the snapshot has no readings and no sessions.
func (p *ProgressSnapshot) IsEmpty() bool {
	return p == nil || (len(p.Weights) == 0 && len(p.Workouts) == 0)
}

// WeightsNewestFirst returns a copy of the weight entries sorted by date descending.
func (p *ProgressSnapshot) WeightsNewestFirst() []WeightEntry {
	if p == nil {
		return nil
	}
	out := append([]WeightEntry(nil), p.Weights...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// WorkoutsNewestFirst returns a copy of the sessions sorted by date/start time descending.
func (p *ProgressSnapshot) WorkoutsNewestFirst() []WorkoutSession {
	if p == nil {
		return nil
	}
	out := append([]WorkoutSession(nil), p.Workouts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].sortTime().After(out[j].sortTime()) })
	return out
}

// CompletedWorkouts counts sessions flagged as completed.
func (p *ProgressSnapshot) CompletedWorkouts() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, w := range p.Workouts {
		if w.Completed {
			n++
		}
	}
	return n
}
