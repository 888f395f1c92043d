// Package analysis decides when to run an autonomous progress analysis and
// runs it through the same pipeline as a chat turn.
package analysis

import (
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
)

const (
	// WeeklyInterval is the time-based trigger.
	WeeklyInterval = 7 * 24 * time.Hour
	// MilestoneWorkouts is the number of completed workouts since the last
	// analysis that triggers a new one.
	MilestoneWorkouts = 5
	// PlateauWindow is how many recent weight readings the plateau check uses.
	PlateauWindow = 5
	// PlateauVariance is the variance below which weight counts as flat.
	PlateauVariance = 0.5
	// StagnationWindow is how many recent sessions the stagnation check uses.
	StagnationWindow = 5
	// HeuristicCooldown keeps the plateau and stagnation triggers from
	// firing on every sweep while the condition persists.
	HeuristicCooldown = 72 * time.Hour
)

// Trigger names the reason an analysis ran.
type Trigger string

const (
	TriggerNone       Trigger = ""
	TriggerTime       Trigger = "time"
	TriggerMilestone  Trigger = "milestone"
	TriggerPlateau    Trigger = "plateau"
	TriggerStagnation Trigger = "stagnation"
	TriggerManual     Trigger = "manual"
)

// AnalysisType maps a trigger to the stored analysis type.
func (t Trigger) AnalysisType() domain.AnalysisType {
	switch t {
	case TriggerMilestone:
		return domain.AnalysisMilestone
	case TriggerManual:
		return domain.AnalysisManual
	default:
		return domain.AnalysisWeekly
	}
}

// Activity is the input to ShouldTrigger.
type Activity struct {
	Progress *domain.ProgressSnapshot
	Markers  domain.AnalysisMarkers
	Now      time.Time
}

// ShouldTrigger reports whether an automatic analysis is due and why. The
// predicates are checked in order: time, milestone, plateau, stagnation.
func ShouldTrigger(a Activity) (bool, Trigger) {
	if a.Progress.IsEmpty() {
		return false, TriggerNone
	}
	last := a.Markers.LastAnalysisAt
	sinceLast := a.Now.Sub(last)

	if last.IsZero() || sinceLast >= WeeklyInterval {
		return true, TriggerTime
	}
	if a.Progress.CompletedWorkouts()-a.Markers.LastWorkoutCount >= MilestoneWorkouts {
		return true, TriggerMilestone
	}
	if sinceLast < HeuristicCooldown {
		return false, TriggerNone
	}
	if WeightPlateau(a.Progress.WeightsNewestFirst()) {
		return true, TriggerPlateau
	}
	if PerformanceStagnation(a.Progress.WorkoutsNewestFirst()) {
		return true, TriggerStagnation
	}
	return false, TriggerNone
}

// WeightPlateau reports whether the variance of the most recent readings is
// below PlateauVariance. weights must be sorted newest first.
func WeightPlateau(weights []domain.WeightEntry) bool {
	if len(weights) < PlateauWindow {
		return false
	}
	recent := weights[:PlateauWindow]

	var mean float64
	for _, w := range recent {
		mean += w.Weight
	}
	mean /= float64(len(recent))

	var variance float64
	for _, w := range recent {
		d := w.Weight - mean
		variance += d * d
	}
	variance /= float64(len(recent))
	return variance < PlateauVariance
}

// PerformanceStagnation reports whether none of the most recent sessions
// records any positive training volume. sessions must be sorted newest first.
func PerformanceStagnation(sessions []domain.WorkoutSession) bool {
	if len(sessions) < StagnationWindow {
		return false
	}
	for _, s := range sessions[:StagnationWindow] {
		for _, ex := range s.Exercises {
			if ex.Volume() > 0 {
				return false
			}
		}
	}
	return true
}
