package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/fitcoach/internal/analysis"
	"github.com/ashureev/fitcoach/internal/applier"
	"github.com/ashureev/fitcoach/internal/backend"
	"github.com/ashureev/fitcoach/internal/cache"
	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/promptctx"
	"github.com/ashureev/fitcoach/internal/proposal"
)

// Store is the persistence surface the service needs.
type Store interface {
	ContextStore
	applier.PlanStore
	AppendMessages(ctx context.Context, userID string, msgs ...domain.ChatMessage) error
	ClearMessages(ctx context.Context, userID string) error
}

// Sender issues backend requests.
type Sender interface {
	Send(ctx context.Context, req backend.Request) (backend.Response, error)
}

// Parser interprets backend responses.
type Parser interface {
	Parse(resp backend.Response) proposal.Result
}

// Notifier delivers notifications to the user's clients.
type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification) error
}

// MessagePusher delivers transcript messages produced outside a request.
type MessagePusher interface {
	PushMessage(ctx context.Context, userID string, msg domain.ChatMessage) error
}

// Analyst runs and lists progress analyses.
type Analyst interface {
	RunManual(ctx context.Context, userID string) (*analysis.Report, error)
	History(ctx context.Context, userID string) ([]domain.AnalysisResult, error)
}

const pendingNotice = "\n\n(You still have a pending change waiting for a decision. Accept or reject it before I suggest another one.)"

// conversation is the per-user state kept between requests.
type conversation struct {
	busy     atomic.Bool
	applier  *applier.Applier
	lastUsed atomic.Int64
}

// Service drives the conversation loop.
type Service struct {
	store    Store
	loader   *Loader
	sender   Sender
	parser   Parser
	cache    *cache.Cache[backend.Response]
	notifier Notifier
	analyst  Analyst
	recorder applier.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	convs map[string]*conversation
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAnalyst enables manual analyses.
func WithAnalyst(a Analyst) Option {
	return func(s *Service) { s.analyst = a }
}

// WithRecorder sets the proposal outcome recorder.
func WithRecorder(r applier.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the conversation pipeline.
func NewService(store Store, sender Sender, parser Parser, responses *cache.Cache[backend.Response], opts ...Option) *Service {
	s := &Service{
		store:  store,
		loader: NewLoader(store),
		sender: sender,
		parser: parser,
		cache:  responses,
		logger: slog.Default(),
		now:    time.Now,
		convs:  make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) conversation(userID string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[userID]
	if !ok {
		opts := []applier.Option{applier.WithLogger(s.logger), applier.WithClock(s.now)}
		if s.notifier != nil {
			opts = append(opts, applier.WithNotifier(s.notifier))
		}
		if s.recorder != nil {
			opts = append(opts, applier.WithRecorder(s.recorder))
		}
		c = &conversation{applier: applier.New(userID, s.store, opts...)}
		s.convs[userID] = c
	}
	c.lastUsed.Store(s.now().UnixNano())
	return c
}

// acquire takes the conversation's loading gate.
func (s *Service) acquire(userID string) (*conversation, func(), error) {
	c := s.conversation(userID)
	if !c.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}
	return c, func() { c.busy.Store(false) }, nil
}

// SendMessage runs one conversation step for text.
func (s *Service) SendMessage(ctx context.Context, userID, sessionID, text string) (*ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	conv, release, err := s.acquire(userID)
	if err != nil {
		return nil, err
	}
	defer release()

	logger := s.logger.With("user_id", userID, "session_id", sessionID)

	in, err := s.loader.LoadInput(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load conversation context: %w", err)
	}
	conv.applier.SetVisible(in.Training, in.Nutrition)

	octx := promptctx.Build(in)
	key := cache.Key(cache.KeyInput{
		Namespace:     userID + ":" + sessionID,
		Message:       text,
		History:       in.History,
		Goals:         octx.Goals,
		WorkoutDigest: octx.CurrentPlanSummary.Workout,
	})

	resp, hit, sendErr := s.cache.GetOrCreate(key, func() (backend.Response, error) {
		return s.sender.Send(ctx, backend.Request{Message: text, Context: octx})
	})
	if sendErr != nil {
		logger.Warn("assistant backend unavailable, replying with fallback", "error", sendErr)
	}

	parsed := s.parser.Parse(resp)
	content := parsed.Message
	var pending *domain.Proposal
	if parsed.HasProposal() {
		if err := conv.applier.Propose(parsed.Proposal); err != nil {
			if !errors.Is(err, applier.ErrProposalPending) {
				return nil, err
			}
			logger.Info("dropping proposal, another one is pending", "proposal_id", parsed.Proposal.ID)
			content += pendingNotice
		} else {
			pending = parsed.Proposal
		}
	}

	userMsg := domain.NewChatMessage(domain.RoleUser, text)
	reply := domain.NewChatMessage(domain.RoleAssistant, content)
	if pending != nil {
		reply = reply.WithMetadata("proposal_id", pending.ID)
	}
	if parsed.Analysis != nil {
		reply = reply.WithMetadata("analysis_id", parsed.Analysis.ID)
	}
	if err := s.store.AppendMessages(ctx, userID, userMsg, reply); err != nil {
		return nil, fmt.Errorf("append transcript: %w", err)
	}

	if !hit && !resp.Fallback && !resp.WithinBudget {
		s.notify(ctx, userID, domain.Notification{
			Type:    domain.NotificationWarning,
			Title:   "Daily budget exceeded",
			Message: "Today's assistant usage is above the configured budget.",
		})
	}

	logger.Info("assistant replied",
		"cached", hit,
		"fallback", resp.Fallback,
		"proposal", pending != nil,
		"message_length", len(text),
	)
	return &ChatResponse{
		Messages:     []domain.ChatMessage{userMsg, reply},
		Proposal:     pending,
		Analysis:     parsed.Analysis,
		Cached:       hit,
		Fallback:     resp.Fallback,
		WithinBudget: resp.WithinBudget || resp.Fallback,
	}, nil
}

// PendingProposal returns the proposal awaiting a decision, or nil.
func (s *Service) PendingProposal(userID string) *domain.Proposal {
	return s.conversation(userID).applier.Pending()
}

// AcceptProposal applies the pending proposal. Apply failures are reported
// through the returned assistant message; only ErrNoPendingProposal and
// transcript failures are returned as errors.
func (s *Service) AcceptProposal(ctx context.Context, userID string) (*ChatResponse, error) {
	conv, release, err := s.acquire(userID)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := conv.applier.Accept(ctx)
	if errors.Is(err, applier.ErrNoPendingProposal) {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("accepted proposal was not applied", "user_id", userID, "error", err)
	}
	resp, err := s.record(ctx, userID, res.Message)
	if err != nil {
		return nil, err
	}
	training, nutrition := conv.applier.Visible()
	if res.Training != nil {
		resp.Training = training
	}
	if res.Nutrition != nil {
		resp.Nutrition = nutrition
	}
	return resp, nil
}

// RejectProposal discards the pending proposal. An empty slot still gets
// its one acknowledgement message.
func (s *Service) RejectProposal(ctx context.Context, userID string) (*ChatResponse, error) {
	conv, release, err := s.acquire(userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.record(ctx, userID, conv.applier.Reject().Message)
}

// History returns the transcript oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	msgs, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// ClearHistory drops the whole transcript.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	if err := s.store.ClearMessages(ctx, userID); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	s.logger.Info("transcript cleared", "user_id", userID)
	return nil
}

// RunAnalysis runs a manual progress analysis and records its message.
func (s *Service) RunAnalysis(ctx context.Context, userID string) (*ChatResponse, error) {
	if s.analyst == nil {
		return nil, errors.New("progress analysis is not enabled")
	}
	_, release, err := s.acquire(userID)
	if err != nil {
		return nil, err
	}
	defer release()

	report, err := s.analyst.RunManual(ctx, userID)
	if err != nil {
		s.logger.Warn("manual analysis failed", "user_id", userID, "error", err)
		reply := proposal.Apology
		switch {
		case errors.Is(err, backend.ErrNotConfigured):
			reply = backend.NotConfiguredReply
		case errors.Is(err, backend.ErrNetwork):
			reply = backend.NetworkReply
		}
		return s.record(ctx, userID, domain.NewChatMessage(domain.RoleAssistant, reply))
	}
	resp, err := s.record(ctx, userID, reportMessage(report))
	if err != nil {
		return nil, err
	}
	resp.Analysis = &report.Result
	return resp, nil
}

// Analyses lists stored analyses, newest first.
func (s *Service) Analyses(ctx context.Context, userID string) ([]domain.AnalysisResult, error) {
	if s.analyst == nil {
		return []domain.AnalysisResult{}, nil
	}
	results, err := s.analyst.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.AnalysisResult{}
	}
	return results, nil
}

// DeliverReport records an automatic analysis in the transcript and pushes
// it to connected clients. It is the background worker's report callback.
func (s *Service) DeliverReport(ctx context.Context, userID string, report *analysis.Report) {
	msg := reportMessage(report)
	if err := s.store.AppendMessages(ctx, userID, msg); err != nil {
		s.logger.Error("failed to record analysis report", "user_id", userID, "error", err)
		return
	}
	if p, ok := s.notifier.(MessagePusher); ok {
		if err := p.PushMessage(ctx, userID, msg); err != nil {
			s.logger.Debug("failed to push analysis report", "user_id", userID, "error", err)
		}
	}
	s.notify(ctx, userID, domain.Notification{
		Type:    domain.NotificationInfo,
		Title:   "New progress analysis",
		Message: fmt.Sprintf("Your %s check-in is ready.", report.Result.AnalysisType),
	})
}

// PruneIdle forgets conversations unused for longer than idle that have
// no pending proposal. It returns how many were dropped.
func (s *Service) PruneIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle).UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for userID, c := range s.convs {
		if c.lastUsed.Load() < cutoff && !c.busy.Load() && c.applier.Pending() == nil {
			delete(s.convs, userID)
			n++
		}
	}
	return n
}

func (s *Service) record(ctx context.Context, userID string, msg domain.ChatMessage) (*ChatResponse, error) {
	if err := s.store.AppendMessages(ctx, userID, msg); err != nil {
		return nil, fmt.Errorf("append transcript: %w", err)
	}
	return &ChatResponse{Messages: []domain.ChatMessage{msg}, WithinBudget: true}, nil
}

func (s *Service) notify(ctx context.Context, userID string, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, n); err != nil {
		s.logger.Debug("notification not delivered", "user_id", userID, "error", err)
	}
}

func reportMessage(r *analysis.Report) domain.ChatMessage {
	return domain.NewChatMessage(domain.RoleAssistant, r.Message).
		WithMetadata("analysis_id", r.Result.ID).
		WithMetadata("trigger", string(r.Trigger))
}
