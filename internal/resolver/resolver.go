// Package resolver maps free-text exercise references onto entities of a
// structured training program.
package resolver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/google/uuid"
)

// SameEntityThreshold is the similarity above which two names denote the same exercise.
const SameEntityThreshold = 0.7

// ErrNoExercises is returned when a plan has nothing a mutation could address.
var ErrNoExercises = errors.New("training plan has no exercises")

// Strategy records which rule located a target.
type Strategy string

const (
	StrategyExplicitID  Strategy = "explicit_id"
	StrategyInferredID  Strategy = "inferred_id"
	StrategyNameMatch   Strategy = "name_match"
	StrategyFirstInPlan Strategy = "first_in_plan"
)

// Target is a resolved exercise node.
type Target struct {
	domain.ExerciseRef
	Strategy Strategy
}

// ResolveTarget finds the exercise a replacement proposal refers to. Rules
// are tried in order: explicit id, id inferred from the referenced name,
// similar exercise name, first exercise in the plan.
func ResolveTarget(plan *domain.TrainingProgram, changes domain.ExerciseReplacement) (Target, error) {
	refs := plan.Exercises()
	if len(refs) == 0 {
		return Target{}, ErrNoExercises
	}

	if id := strings.TrimSpace(changes.ExerciseID); id != "" {
		if ref, ok := plan.FindExercise(id); ok {
			return Target{ExerciseRef: ref, Strategy: StrategyExplicitID}, nil
		}
	}

	// Models sometimes put a name in the id slot; treat both as references.
	for _, name := range []string{changes.ExerciseName, changes.ExerciseID} {
		if ref, ok := inferByID(refs, name, changes.Day); ok {
			return Target{ExerciseRef: ref, Strategy: StrategyInferredID}, nil
		}
	}

	for _, name := range []string{changes.ExerciseName, changes.ExerciseID} {
		if name == "" {
			continue
		}
		if ref := mostSimilar(refs, name, ""); ref != nil {
			return Target{ExerciseRef: *ref, Strategy: StrategyNameMatch}, nil
		}
	}

	return Target{ExerciseRef: refs[0], Strategy: StrategyFirstInPlan}, nil
}

// inferByID matches the normalized tokens of name against plan ids. An id
// starting with the compacted name wins over one that merely contains every
// token; a day hint breaks ties inside each pass.
func inferByID(refs []domain.ExerciseRef, name, day string) (domain.ExerciseRef, bool) {
	key := compact(name)
	if key == "" {
		return domain.ExerciseRef{}, false
	}
	tokens := Tokens(name)

	prefix := func(id string) bool { return strings.HasPrefix(id, key) }
	allTokens := func(id string) bool {
		if len(tokens) == 0 {
			return false
		}
		for _, tok := range tokens {
			if !strings.Contains(id, compact(tok)) {
				return false
			}
		}
		return true
	}

	for _, match := range []func(string) bool{prefix, allTokens} {
		var first *domain.ExerciseRef
		for i := range refs {
			id := compact(refs[i].Exercise.ID)
			if id == "" || !match(id) {
				continue
			}
			if day == "" || strings.EqualFold(refs[i].Day, day) {
				return refs[i], true
			}
			if first == nil {
				first = &refs[i]
			}
		}
		if first != nil {
			return *first, true
		}
	}
	return domain.ExerciseRef{}, false
}

// FindSimilar returns the plan exercise denoting the same entity as name,
// skipping excludeID. It returns nil when nothing is similar enough.
func FindSimilar(plan *domain.TrainingProgram, name, excludeID string) *domain.Exercise {
	ref := mostSimilar(plan.Exercises(), name, excludeID)
	if ref == nil {
		return nil
	}
	ex := ref.Exercise
	return &ex
}

func mostSimilar(refs []domain.ExerciseRef, name, excludeID string) *domain.ExerciseRef {
	want := Normalize(name)
	if want == "" {
		return nil
	}
	var best *domain.ExerciseRef
	bestScore := 0.0
	for i := range refs {
		ex := refs[i].Exercise
		if excludeID != "" && ex.ID == excludeID {
			continue
		}
		if Normalize(ex.Name) == want {
			return &refs[i]
		}
		if score := Similarity(name, ex.Name); score > SameEntityThreshold && score > bestScore {
			best, bestScore = &refs[i], score
		}
	}
	return best
}

// Similarity scores two names by symmetric token containment:
// matches / max(len(tokens1), len(tokens2)).
func Similarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	matches := 0
	for _, x := range ta {
		for _, y := range tb {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(max(len(ta), len(tb)))
}

// NewEntityID synthesizes an id as slug_timestamp_suffix.
func NewEntityID(name string, now time.Time) string {
	slug := Slug(name)
	if slug == "" {
		slug = "exercise"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%d_%s", slug, now.UnixMilli(), suffix)
}
