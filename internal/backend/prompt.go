package backend

import (
	"strings"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/promptctx"
)

const substitutionRules = `When proposing an exercise substitution:
1. Never propose an exercise that already appears on the same workout day.
2. The substitute must train the same primary muscle group as the exercise it replaces.
3. Only reference exercise ids that appear in the "Exercise IDs" list below, and set exerciseId to the id of the exercise being replaced.
4. Keep the original sets and reps unless the user asked to change them.`

// SystemPrompt renders the system message for a request.
func SystemPrompt(oc promptctx.OptimizedContext) string {
	var b strings.Builder
	b.WriteString("You are a personal fitness and nutrition coach. Answer briefly and concretely, in the user's language.\n")
	b.WriteString("Use chat_only for questions and advice, propose_changes only when the user wants their plan changed, and analyze_progress when asked to review progress.\n\n")

	section(&b, "User", oc.UserBasics)
	if oc.Goals != "" {
		section(&b, "Goals", oc.Goals)
	}
	section(&b, "Training plan", oc.CurrentPlanSummary.Workout)
	section(&b, "Nutrition plan", oc.CurrentPlanSummary.Nutrition)
	section(&b, "Recent progress", oc.RecentProgress)
	if oc.ProgressDetails != "" {
		section(&b, "Recent sessions", oc.ProgressDetails)
	}
	if digest := historyDigest(oc.ChatHistory); digest != "" {
		section(&b, "Conversation so far", digest)
	}
	b.WriteString(substitutionRules)
	return b.String()
}

// historyDigest joins the synthetic summaries that CompressHistory puts in
// front of the kept messages.
func historyDigest(history []domain.ChatMessage) string {
	var parts []string
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func section(b *strings.Builder, title, body string) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n\n")
}
