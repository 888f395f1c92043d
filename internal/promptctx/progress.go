package promptctx

import (
	"fmt"
	"strings"

	"github.com/ashureev/fitcoach/internal/domain"
)

const (
	recentWeightReadings = 5
	recentSessions       = 3
	dateLayout           = "2006-01-02"
)

// Direction markers for exercise progression.
const (
	TrendUp   = "↑"
	TrendDown = "↓"
	TrendFlat = "→"
)

// DigestProgress renders weight and workout history into a short summary
// and a per-session detail block.
func DigestProgress(p *domain.ProgressSnapshot) (recent, details string) {
	if p.IsEmpty() {
		return NoProgressData, NoProgressData
	}

	var summary []string
	if weights := p.WeightsNewestFirst(); len(weights) > 0 {
		n := min(recentWeightReadings, len(weights))
		readings := make([]string, n)
		for i := 0; i < n; i++ {
			readings[i] = fmt.Sprintf("%.1f", weights[i].Weight)
		}
		summary = append(summary, fmt.Sprintf("Weight: started at %.1f kg, recent readings %s kg (%d readings total)",
			weights[len(weights)-1].Weight, strings.Join(readings, ", "), len(weights)))
	} else {
		summary = append(summary, "Weight: no readings")
	}

	workouts := p.WorkoutsNewestFirst()
	summary = append(summary, fmt.Sprintf("Workouts: %d logged, %d completed", len(workouts), p.CompletedWorkouts()))

	if len(workouts) == 0 {
		return strings.Join(summary, "\n"), "No workouts logged"
	}

	var b strings.Builder
	for i := 0; i < min(recentSessions, len(workouts)); i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeSession(&b, workouts[i], workouts[i+1:])
	}
	return strings.Join(summary, "\n"), b.String()
}

func writeSession(b *strings.Builder, s domain.WorkoutSession, older []domain.WorkoutSession) {
	status := "incomplete"
	if s.Completed {
		status = "completed"
	}
	fmt.Fprintf(b, "%s (%s):", s.Date.Format(dateLayout), status)

	wrote := false
	for _, ex := range s.Exercises {
		top := ex.MaxWeight()
		if top <= 0 {
			continue
		}
		sets := make([]string, 0, len(ex.Sets))
		for _, set := range ex.Sets {
			sets = append(sets, fmt.Sprintf("%gkg×%d", set.Weight, set.Reps))
		}
		fmt.Fprintf(b, " %s %s", ex.Name, strings.Join(sets, ", "))
		if prev, ok := previousMax(older, ex.Name); ok {
			fmt.Fprintf(b, " [%s %+.1fkg vs %gkg]", Trend(top, prev), top-prev, prev)
		}
		b.WriteByte(';')
		wrote = true
	}
	if !wrote {
		b.WriteString(" no weighted exercises")
	}
}

// previousMax finds the max weight of the same exercise in the next older session that has it.
func previousMax(older []domain.WorkoutSession, name string) (float64, bool) {
	for _, s := range older {
		for _, ex := range s.Exercises {
			if strings.EqualFold(ex.Name, name) {
				return ex.MaxWeight(), true
			}
		}
	}
	return 0, false
}

// Trend returns the marker comparing current against previous.
func Trend(current, previous float64) string {
	switch {
	case current > previous:
		return TrendUp
	case current < previous:
		return TrendDown
	default:
		return TrendFlat
	}
}
