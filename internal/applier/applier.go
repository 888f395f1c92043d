// Package applier is the single entry point for plan mutations. It owns the
// pending proposal slot and turns accepted proposals into Plan Store writes.
package applier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/resolver"
)

// PlanStore reads and writes whole plan entities by user id.
type PlanStore interface {
	GetTrainingPlan(ctx context.Context, userID string) (*domain.TrainingProgram, error)
	SaveTrainingPlan(ctx context.Context, userID string, plan *domain.TrainingProgram) error
	GetNutritionGoals(ctx context.Context, userID string) (*domain.NutritionGoals, error)
	SaveNutritionGoals(ctx context.Context, userID string, goals *domain.NutritionGoals) error
	GetWeeklyMealPlan(ctx context.Context, userID string) (*domain.WeeklyMealPlan, error)
	SaveWeeklyMealPlan(ctx context.Context, userID string, plan *domain.WeeklyMealPlan) error
}

// NutritionPlanSaver is implemented by stores that can write goals and the
// weekly meal plan atomically. Nil arguments are left untouched.
type NutritionPlanSaver interface {
	SaveNutritionPlan(ctx context.Context, userID string, goals *domain.NutritionGoals, weekly *domain.WeeklyMealPlan) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification) error
}

// Recorder counts proposal outcomes.
type Recorder interface {
	ObserveProposal(proposalType, outcome string)
}

// Result is the outcome of applying or rejecting a proposal.
type Result struct {
	// Message is the assistant reply to append to the transcript.
	Message domain.ChatMessage
	Applied bool
	// Training and Nutrition hold the published plan when it changed.
	Training  *domain.TrainingProgram
	Nutrition *domain.NutritionPlan
}

// Applier applies proposals for one user's conversation.
type Applier struct {
	userID   string
	store    PlanStore
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	pending   *domain.Proposal
	training  *domain.TrainingProgram
	nutrition *domain.NutritionPlan
}

// Option configures an Applier.
type Option func(*Applier)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(a *Applier) { a.notifier = n }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Applier) { a.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// New creates an Applier in the idle state.
func New(userID string, store PlanStore, opts ...Option) *Applier {
	a := &Applier{
		userID: userID,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("user_id", userID)
	return a
}

// Propose parks p in the pending slot.
func (a *Applier) Propose(p *domain.Proposal) error {
	if p == nil {
		return errors.New("nil proposal")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		return ErrProposalPending
	}
	a.pending = p
	return nil
}

// Pending returns the proposal awaiting a decision, if any.
func (a *Applier) Pending() *domain.Proposal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Visible returns the last published plans.
func (a *Applier) Visible() (*domain.TrainingProgram, *domain.NutritionPlan) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.training, a.nutrition
}

// SetVisible seeds the published plans from a fresh store read.
func (a *Applier) SetVisible(training *domain.TrainingProgram, nutrition *domain.NutritionPlan) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.training, a.nutrition = training, nutrition
}

// Accept applies the pending proposal. The slot is cleared whatever the
// outcome, and Result.Message is always set.
func (a *Applier) Accept(ctx context.Context) (Result, error) {
	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.mu.Unlock()

	if p == nil {
		return Result{Message: assistant("There's no pending change to apply right now.")}, ErrNoPendingProposal
	}
	return a.Apply(ctx, p)
}

// Reject clears the pending slot, whatever its state, and returns exactly
// one assistant message.
func (a *Applier) Reject() Result {
	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.mu.Unlock()

	if p == nil {
		return Result{Message: assistant("Okay, nothing to discard. Your plan stays as it is.")}
	}
	a.observe(p.Type, "rejected")
	a.logger.Info("proposal rejected", "proposal_id", p.ID, "type", p.Type)
	return Result{Message: assistant(fmt.Sprintf("No problem, I've discarded \"%s\". Your plan stays as it is.", p.Title))}
}

// Apply performs the mutation described by p.
func (a *Applier) Apply(ctx context.Context, p *domain.Proposal) (Result, error) {
	logger := a.logger.With("proposal_id", p.ID, "type", p.Type)

	var (
		res Result
		err error
	)
	switch changes := p.Changes.(type) {
	case domain.ExerciseReplacement:
		res, err = a.replaceExercise(ctx, changes)
	case domain.WorkoutModification:
		res, err = a.modifyWorkout(ctx, p, changes)
	case domain.NutritionAdjustment:
		res, err = a.adjustNutrition(ctx, p, changes)
	case domain.ProgressAnalysis:
		logger.Info("progress analysis acknowledged, no plan change")
		msg := "Thanks, I've noted this review. Your plan stays as it is."
		if s := strings.TrimSpace(changes.Summary); s != "" {
			msg = "Noted: " + s
		}
		a.observe(p.Type, "acknowledged")
		return Result{Message: assistant(msg)}, nil
	default:
		logger.Warn("unsupported proposal type, ignoring")
		a.observe(p.Type, "unsupported")
		return Result{Message: assistant("I can't apply that kind of change yet, so your plan stays as it is.")}, nil
	}

	if err != nil {
		logger.Error("failed to apply proposal", "error", err)
		a.observe(p.Type, "failed")
		a.notify(ctx, domain.Notification{Type: domain.NotificationError, Title: "Update failed", Message: failureMessage(err)})
		return Result{Message: assistant(failureMessage(err))}, err
	}

	logger.Info("proposal applied")
	a.observe(p.Type, "applied")
	a.notify(ctx, domain.Notification{Type: domain.NotificationSuccess, Title: "Plan updated", Message: p.Title})
	res.Applied = true
	return res, nil
}

func (a *Applier) replaceExercise(ctx context.Context, ch domain.ExerciseReplacement) (Result, error) {
	plan, err := a.store.GetTrainingPlan(ctx, a.userID)
	if err != nil {
		return Result{}, persistenceError("load training plan", err)
	}
	target, err := resolver.ResolveTarget(plan, ch)
	if err != nil {
		return Result{}, err
	}

	old := target.Exercise
	replacement := old
	replacement.ID = a.replacementID(plan, ch.NewExercise, old.ID)
	replacement.Name = strings.TrimSpace(ch.NewExercise.Name)
	overlay(&replacement, ch.NewExercise)

	updated := plan.Clone()
	updated.WorkoutDays[target.DayIndex].Exercises[target.ExerciseIndex] = replacement
	updated.UpdatedAt = a.now().UTC()

	if err := a.store.SaveTrainingPlan(ctx, a.userID, updated); err != nil {
		return Result{}, persistenceError("save training plan", err)
	}
	a.publishTraining(updated)

	a.logger.Info("exercise replaced",
		"from_id", old.ID, "to_id", replacement.ID, "day", target.Day, "strategy", target.Strategy)
	return Result{
		Message:  assistant(fmt.Sprintf("Done! %s → %s on %s.", old.Name, replacement.Name, target.Day)),
		Training: updated,
	}, nil
}

// replacementID reuses the id of an existing exercise that names the same
// entity, otherwise synthesizes a fresh one.
func (a *Applier) replacementID(plan *domain.TrainingProgram, ex domain.ReplacementExercise, targetID string) string {
	if id := strings.TrimSpace(ex.ID); id != "" && id != targetID {
		if _, ok := plan.FindExercise(id); ok {
			return id
		}
	}
	if similar := resolver.FindSimilar(plan, ex.Name, targetID); similar != nil {
		return similar.ID
	}
	return resolver.NewEntityID(ex.Name, a.now())
}

func overlay(dst *domain.Exercise, src domain.ReplacementExercise) {
	if len(src.TargetMuscles) > 0 {
		dst.TargetMuscles = append([]string(nil), src.TargetMuscles...)
	}
	if src.Sets != nil {
		dst.Sets = *src.Sets
	}
	if src.Reps != nil {
		dst.Reps = *src.Reps
	}
	if src.RestSeconds != nil {
		dst.RestSeconds = *src.RestSeconds
	}
	if src.Equipment != "" {
		dst.Equipment = src.Equipment
	}
	// Notes are cues for the old movement and never carry over.
	dst.Notes = src.Notes
}

func (a *Applier) modifyWorkout(ctx context.Context, p *domain.Proposal, ch domain.WorkoutModification) (Result, error) {
	plan, err := a.store.GetTrainingPlan(ctx, a.userID)
	if err != nil {
		return Result{}, persistenceError("load training plan", err)
	}
	updated := ch.WorkoutChanges.ApplyTo(plan)
	updated.UpdatedAt = a.now().UTC()

	if err := a.store.SaveTrainingPlan(ctx, a.userID, updated); err != nil {
		return Result{}, persistenceError("save training plan", err)
	}
	a.publishTraining(updated)
	return Result{
		Message:  assistant(fmt.Sprintf("Your training plan has been updated: %s.", p.Title)),
		Training: updated,
	}, nil
}

func (a *Applier) adjustNutrition(ctx context.Context, p *domain.Proposal, ch domain.NutritionAdjustment) (Result, error) {
	next := &domain.NutritionPlan{}

	if ch.Goals != nil {
		current, err := a.store.GetNutritionGoals(ctx, a.userID)
		if err != nil {
			return Result{}, persistenceError("load nutrition goals", err)
		}
		goals := ch.Goals.ApplyTo(current)
		next.Goals = &goals
	}
	if len(ch.WeeklyPlan) > 0 {
		current, err := a.store.GetWeeklyMealPlan(ctx, a.userID)
		if err != nil {
			return Result{}, persistenceError("load meal plan", err)
		}
		next.WeeklyPlan = ch.MergeWeeklyPlan(current)
	}

	if saver, ok := a.store.(NutritionPlanSaver); ok {
		if err := saver.SaveNutritionPlan(ctx, a.userID, next.Goals, next.WeeklyPlan); err != nil {
			return Result{}, persistenceError("save nutrition plan", err)
		}
	} else {
		goalsSaved := false
		if next.Goals != nil {
			if err := a.store.SaveNutritionGoals(ctx, a.userID, next.Goals); err != nil {
				return Result{}, persistenceError("save nutrition goals", err)
			}
			goalsSaved = true
		}
		if next.WeeklyPlan != nil {
			if err := a.store.SaveWeeklyMealPlan(ctx, a.userID, next.WeeklyPlan); err != nil {
				perr := persistenceError("save meal plan", err)
				perr.Partial = goalsSaved
				if goalsSaved {
					a.publishNutrition(&domain.NutritionPlan{Goals: next.Goals})
				}
				return Result{}, perr
			}
		}
	}

	a.publishNutrition(next)
	return Result{
		Message:   assistant(fmt.Sprintf("Your nutrition plan has been updated: %s.", p.Title)),
		Nutrition: next,
	}, nil
}

func (a *Applier) publishTraining(plan *domain.TrainingProgram) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.training = plan
}

// publishNutrition merges the written parts onto the visible plan.
func (a *Applier) publishNutrition(written *domain.NutritionPlan) {
	a.mu.Lock()
	defer a.mu.Unlock()
	merged := &domain.NutritionPlan{}
	if a.nutrition != nil {
		*merged = *a.nutrition
	}
	if written.Goals != nil {
		merged.Goals = written.Goals
	}
	if written.WeeklyPlan != nil {
		merged.WeeklyPlan = written.WeeklyPlan
	}
	a.nutrition = merged
}

func (a *Applier) notify(ctx context.Context, n domain.Notification) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, a.userID, n); err != nil {
		a.logger.Warn("failed to deliver notification", "error", err)
	}
}

func (a *Applier) observe(t domain.ProposalType, outcome string) {
	if a.recorder != nil {
		a.recorder.ObserveProposal(string(t), outcome)
	}
}

func failureMessage(err error) string {
	var perr *PersistenceError
	switch {
	case errors.As(err, &perr):
		return perr.userMessage()
	case errors.Is(err, resolver.ErrNoExercises):
		return "Your training plan has no exercises yet, so there is nothing to replace."
	default:
		return "Something went wrong while applying the change, so your plan was left as it was."
	}
}

func assistant(content string) domain.ChatMessage {
	return domain.NewChatMessage(domain.RoleAssistant, content)
}
