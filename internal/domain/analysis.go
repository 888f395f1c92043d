package domain

import (
	"time"
)

// AnalysisType records what caused an analysis to run.
type AnalysisType string

const (
	AnalysisWeekly    AnalysisType = "weekly"
	AnalysisMilestone AnalysisType = "milestone"
	AnalysisManual    AnalysisType = "manual"
)

// ProgressStatus is the headline verdict of an analysis.
type ProgressStatus string

const (
	ProgressExcellent ProgressStatus = "excellent"
	ProgressGood      ProgressStatus = "good"
	ProgressStagnant  ProgressStatus = "stagnant"
	ProgressDeclining ProgressStatus = "declining"
)

// NormalizeProgressStatus maps free-form input onto a known status, defaulting to good.
func NormalizeProgressStatus(s string) ProgressStatus {
	switch ProgressStatus(s) {
	case ProgressExcellent, ProgressGood, ProgressStagnant, ProgressDeclining:
		return ProgressStatus(s)
	default:
		return ProgressGood
	}
}

// Recommendation is one prioritized action item.
type Recommendation struct {
	Text     string   `json:"text"`
	Priority Priority `json:"priority"`
}

// AnalysisResult is a stored progress analysis.
type AnalysisResult struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	AnalysisType    AnalysisType     `json:"analysis_type"`
	ProgressStatus  ProgressStatus   `json:"progress_status"`
	KeyFindings     []string         `json:"key_findings"`
	Concerns        []string         `json:"concerns"`
	Achievements    []string         `json:"achievements"`
	Recommendations []Recommendation `json:"recommendations"`
}

// AnalysisMarkers debounce automatic analyses.
type AnalysisMarkers struct {
	LastAnalysisAt   time.Time `json:"last_analysis_at"`
	LastWorkoutCount int       `json:"last_workout_count"`
}

// MaxStoredAnalyses caps the per-user analysis history.
const MaxStoredAnalyses = 10
