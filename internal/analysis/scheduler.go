package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/fitcoach/internal/backend"
	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/promptctx"
	"github.com/ashureev/fitcoach/internal/proposal"
)

const analysisPrompt = "Analyse my recent training and body-weight progress and tell me how I'm doing."

// ErrNoAnalysis is returned when the backend answered without an analysis.
var ErrNoAnalysis = errors.New("backend returned no analysis")

// Store persists analysis results and debounce markers.
type Store interface {
	AppendAnalysis(ctx context.Context, userID string, result domain.AnalysisResult) error
	LatestAnalysis(ctx context.Context, userID string) (*domain.AnalysisResult, error)
	ListAnalyses(ctx context.Context, userID string) ([]domain.AnalysisResult, error)
	GetAnalysisMarkers(ctx context.Context, userID string) (domain.AnalysisMarkers, error)
	SetAnalysisMarkers(ctx context.Context, userID string, markers domain.AnalysisMarkers) error
}

// ContextLoader reads everything the context builder needs for a user.
type ContextLoader interface {
	LoadInput(ctx context.Context, userID string) (promptctx.Input, error)
}

// Sender issues backend requests.
type Sender interface {
	Send(ctx context.Context, req backend.Request) (backend.Response, error)
}

// Parser interprets backend responses.
type Parser interface {
	Parse(resp backend.Response) proposal.Result
}

// Recorder counts analysis runs.
type Recorder interface {
	ObserveAnalysis(trigger string)
}

// Report is a completed analysis.
type Report struct {
	Trigger Trigger
	Result  domain.AnalysisResult
	// Message is the formatted analysis for the transcript.
	Message string
}

// Scheduler runs progress analyses.
type Scheduler struct {
	store    Store
	loader   ContextLoader
	sender   Sender
	parser   Parser
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder sets the run recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler.
func NewScheduler(store Store, loader ContextLoader, sender Sender, parser Parser, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		loader: loader,
		sender: sender,
		parser: parser,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAutomatic runs an analysis if one is due. It returns nil when no
// trigger fires.
func (s *Scheduler) RunAutomatic(ctx context.Context, userID string) (*Report, error) {
	in, err := s.loader.LoadInput(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	markers, err := s.store.GetAnalysisMarkers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get analysis markers: %w", err)
	}

	due, trigger := ShouldTrigger(Activity{Progress: in.Progress, Markers: markers, Now: s.now()})
	if !due {
		return nil, nil
	}
	return s.run(ctx, userID, in, trigger)
}

// RunManual runs an analysis on request.
func (s *Scheduler) RunManual(ctx context.Context, userID string) (*Report, error) {
	in, err := s.loader.LoadInput(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	return s.run(ctx, userID, in, TriggerManual)
}

func (s *Scheduler) run(ctx context.Context, userID string, in promptctx.Input, trigger Trigger) (*Report, error) {
	logger := s.logger.With("user_id", userID, "trigger", trigger)

	resp, err := s.sender.Send(ctx, backend.Request{
		Message:       analysisPrompt,
		Context:       promptctx.Build(in),
		ForceFunction: backend.FunctionAnalyzeProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("request analysis: %w", err)
	}

	parsed := s.parser.Parse(resp)
	if parsed.Analysis == nil {
		if parsed.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAnalysis, parsed.Err)
		}
		return nil, ErrNoAnalysis
	}

	now := s.now().UTC()
	result := *parsed.Analysis
	result.AnalysisType = trigger.AnalysisType()
	result.Timestamp = now

	if err := s.store.AppendAnalysis(ctx, userID, result); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	markers := domain.AnalysisMarkers{LastAnalysisAt: now, LastWorkoutCount: in.Progress.CompletedWorkouts()}
	if err := s.store.SetAnalysisMarkers(ctx, userID, markers); err != nil {
		return nil, fmt.Errorf("update analysis markers: %w", err)
	}

	if s.recorder != nil {
		s.recorder.ObserveAnalysis(string(trigger))
	}
	logger.Info("progress analysis stored", "analysis_id", result.ID, "status", result.ProgressStatus)
	return &Report{Trigger: trigger, Result: result, Message: parsed.Message}, nil
}

// Latest returns the newest stored analysis, or nil.
func (s *Scheduler) Latest(ctx context.Context, userID string) (*domain.AnalysisResult, error) {
	return s.store.LatestAnalysis(ctx, userID)
}

// History returns stored analyses, newest first.
func (s *Scheduler) History(ctx context.Context, userID string) ([]domain.AnalysisResult, error) {
	return s.store.ListAnalyses(ctx, userID)
}
