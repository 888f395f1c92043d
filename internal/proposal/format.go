package proposal

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ashureev/fitcoach/internal/domain"
)

// Glyph returns the marker shown before a recommendation.
func Glyph(p domain.Priority) string {
	switch p {
	case domain.PriorityHigh:
		return "🔴"
	case domain.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// FormatAnalysis renders an analysis as a chat message. Sections appear in
// the order findings, achievements, concerns, recommendations and are
// omitted when empty.
func FormatAnalysis(r domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("📊 Progress analysis: ")
	// A Caser keeps state between calls, so each render gets its own.
	b.WriteString(cases.Title(language.English).String(string(r.ProgressStatus)))
	b.WriteString("\n")

	bullets(&b, "Key findings", r.KeyFindings)
	bullets(&b, "Achievements", r.Achievements)
	bullets(&b, "Concerns", r.Concerns)

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			b.WriteString(Glyph(rec.Priority))
			b.WriteString(" ")
			b.WriteString(rec.Text)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func bullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("• ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
