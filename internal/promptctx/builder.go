// Package promptctx compresses chat history and plan/progress state into the
// bounded context sent with every backend request.
package promptctx

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/fitcoach/internal/domain"
)

const (
	maxUncompressedHistory = 8
	keepRecentMessages     = 5
	summaryTopics          = 3
	topicMaxLen            = 50
)

// Sentinels rendered in place of missing data.
const (
	NoTrainingPlan  = "No training plan configured"
	NoNutritionPlan = "No nutrition plan configured"
	NoProgressData  = "No progress data recorded yet"
	NoProfileData   = "No profile information provided"
)

// PlanSummary holds the text digests of the user's plans.
type PlanSummary struct {
	Workout   string `json:"workout"`
	Nutrition string `json:"nutrition"`
}

// OptimizedContext is the bounded payload a backend request is built from.
// It is rebuilt for every request and never persisted.
type OptimizedContext struct {
	UserBasics         string               `json:"user_basics"`
	Goals              string               `json:"goals"`
	CurrentPlanSummary PlanSummary          `json:"current_plan_summary"`
	ChatHistory        []domain.ChatMessage `json:"chat_history"`
	RecentProgress     string               `json:"recent_progress"`
	ProgressDetails    string               `json:"progress_details"`
}

// Input is everything the builder reads. Nil plans and snapshots are allowed.
type Input struct {
	Profile   domain.UserProfile
	Training  *domain.TrainingProgram
	Nutrition *domain.NutritionPlan
	Progress  *domain.ProgressSnapshot
	History   []domain.ChatMessage
}

// Build assembles the optimized context.
func Build(in Input) OptimizedContext {
	recent, details := DigestProgress(in.Progress)
	return OptimizedContext{
		UserBasics: DigestProfile(in.Profile),
		Goals:      strings.Join(in.Profile.Goals, ", "),
		CurrentPlanSummary: PlanSummary{
			Workout:   DigestTraining(in.Training),
			Nutrition: DigestNutrition(in.Nutrition),
		},
		ChatHistory:     CompressHistory(in.History),
		RecentProgress:  recent,
		ProgressDetails: details,
	}
}

// CompressHistory passes short histories through. Longer ones keep the last
// five messages verbatim behind one synthetic system message that lists the
// most recent user topics of the dropped prefix.
func CompressHistory(history []domain.ChatMessage) []domain.ChatMessage {
	if len(history) <= maxUncompressedHistory {
		return history
	}

	cut := len(history) - keepRecentMessages
	older := history[:cut]

	var topics []string
	for i := len(older) - 1; i >= 0 && len(topics) < summaryTopics; i-- {
		if older[i].Role != domain.RoleUser {
			continue
		}
		topics = append(topics, truncate(strings.TrimSpace(older[i].Content), topicMaxLen))
	}
	// Oldest first reads naturally.
	for i, j := 0, len(topics)-1; i < j; i, j = i+1, j-1 {
		topics[i], topics[j] = topics[j], topics[i]
	}

	content := fmt.Sprintf("Earlier conversation (%d messages) summarized.", len(older))
	if len(topics) > 0 {
		content += " Recent topics: " + strings.Join(quoteAll(topics), "; ")
	}
	summary := domain.ChatMessage{
		ID:        "history-summary",
		Role:      domain.RoleSystem,
		Content:   content,
		Timestamp: older[len(older)-1].Timestamp,
		Metadata:  map[string]any{"synthetic": true, "summarized": len(older)},
	}

	out := make([]domain.ChatMessage, 0, keepRecentMessages+1)
	out = append(out, summary)
	return append(out, history[cut:]...)
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// DigestProfile renders the profile as one line, omitting unknown fields.
func DigestProfile(p domain.UserProfile) string {
	if p.IsZero() {
		return NoProfileData
	}
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Name: "+p.Name)
	}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d", p.Age))
	}
	if p.Sex != "" {
		parts = append(parts, "Sex: "+p.Sex)
	}
	if p.HeightCM > 0 {
		parts = append(parts, fmt.Sprintf("Height: %.0f cm", p.HeightCM))
	}
	if p.WeightKG > 0 {
		parts = append(parts, fmt.Sprintf("Weight: %.1f kg", p.WeightKG))
	}
	if p.ExperienceLevel != "" {
		parts = append(parts, "Level: "+p.ExperienceLevel)
	}
	if len(p.Goals) > 0 {
		parts = append(parts, "Goals: "+strings.Join(p.Goals, ", "))
	}
	if len(p.Equipment) > 0 {
		parts = append(parts, "Equipment: "+strings.Join(p.Equipment, ", "))
	}
	return strings.Join(parts, " | ")
}

// DigestTraining renders one line per workout day plus a flat name=id list.
func DigestTraining(p *domain.TrainingProgram) string {
	if p == nil || len(p.WorkoutDays) == 0 {
		return NoTrainingPlan
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Program: %s", p.Name)
	if p.DaysPerWeek > 0 {
		fmt.Fprintf(&b, " (%d days/week)", p.DaysPerWeek)
	}
	b.WriteByte('\n')

	var ids []string
	for _, day := range p.WorkoutDays {
		label := day.Day
		if day.Name != "" {
			label += " (" + day.Name + ")"
		}
		if len(day.Exercises) == 0 {
			fmt.Fprintf(&b, "%s: rest\n", label)
			continue
		}
		items := make([]string, 0, len(day.Exercises))
		for _, ex := range day.Exercises {
			item := fmt.Sprintf("%s [%s]", ex.Name, ex.ID)
			if len(ex.TargetMuscles) > 0 {
				item += " (" + strings.Join(ex.TargetMuscles, ", ") + ")"
			}
			items = append(items, item)
			ids = append(ids, ex.Name+"="+ex.ID)
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(items, "; "))
	}
	b.WriteString("Exercise IDs: ")
	if len(ids) == 0 {
		b.WriteString("none")
	} else {
		b.WriteString(strings.Join(ids, ", "))
	}
	return b.String()
}

// DigestNutrition renders a one-line macro summary and the planned day count.
func DigestNutrition(n *domain.NutritionPlan) string {
	if n.IsEmpty() {
		return NoNutritionPlan
	}
	targets := "Daily targets: not set"
	if g := n.Goals; g != nil {
		targets = fmt.Sprintf("Daily targets: %.0f kcal, protein %.0fg, carbs %.0fg, fat %.0fg", g.Calories, g.Protein, g.Carbs, g.Fat)
		if g.Goal != "" {
			targets += " (goal: " + g.Goal + ")"
		}
	}
	days := 0
	if n.WeeklyPlan != nil {
		days = len(n.WeeklyPlan.Days)
	}
	return fmt.Sprintf("%s | Meal plan: %d days", targets, days)
}
