// Package proposal interprets backend responses as chat messages, typed plan
// proposals or analysis reports.
package proposal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ashureev/fitcoach/internal/backend"
	"github.com/ashureev/fitcoach/internal/domain"
)

// Apology is the reply when nothing usable can be recovered.
const Apology = "Sorry, I couldn't process that response properly. Could you try asking again?"

const incompleteProposalReply = "I had an idea for your plan but couldn't put together a complete proposal. Could you tell me again what you'd like to change?"

// Stage identifies where parsing failed.
type Stage string

const (
	StageArguments Stage = "arguments"
	StageFields    Stage = "fields"
	StageChanges   Stage = "changes"
	StageFunction  Stage = "function"
	StagePanic     Stage = "panic"
)

// ErrUnknownChangeType is returned for a changeType with no variant.
var ErrUnknownChangeType = errors.New("unknown change type")

// ParseError describes a response that could not be fully interpreted.
type ParseError struct {
	Function string
	Stage    Stage
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Function, e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result is the outcome of parsing. Message is always set.
type Result struct {
	Message  string
	Proposal *domain.Proposal
	Analysis *domain.AnalysisResult
	// Err is the parse failure that was recovered from, if any.
	Err      error
	Salvaged bool
}

// HasProposal reports whether a proposal awaits the user's decision.
func (r Result) HasProposal() bool { return r.Proposal != nil }

// Recorder receives parse failure counts.
type Recorder interface {
	ObserveParseFailure(recovery string)
}

// Parser turns backend responses into Results.
type Parser struct {
	validate *validator.Validate
	salvager Salvager
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithSalvager sets the recovery strategy for malformed arguments. A nil
// salvager disables recovery.
func WithSalvager(s Salvager) Option {
	return func(p *Parser) { p.salvager = s }
}

// WithRecorder reports failures to r.
func WithRecorder(r Recorder) Option {
	return func(p *Parser) { p.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a parser using RegexSalvager unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		validate: validator.New(),
		salvager: RegexSalvager{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type chatArgs struct {
	Message string `json:"message" validate:"required"`
}

type proposeArgs struct {
	Message     string          `json:"message"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Reasoning   string          `json:"reasoning" validate:"required"`
	Priority    string          `json:"priority"`
	ChangeType  string          `json:"changeType" validate:"required"`
	Changes     json.RawMessage `json:"changes"`
}

type analyzeArgs struct {
	ProgressStatus  string   `json:"progressStatus"`
	KeyFindings     []string `json:"keyFindings"`
	Achievements    []string `json:"achievements"`
	Concerns        []string `json:"concerns"`
	Recommendations []struct {
		Text     string `json:"text"`
		Priority string `json:"priority"`
	} `json:"recommendations"`
}

// Parse interprets resp. It never panics and always returns a message.
func (p *Parser) Parse(resp backend.Response) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("proposal parser panic", "panic", r)
			res = Result{Message: Apology, Err: &ParseError{Stage: StagePanic, Err: fmt.Errorf("%v", r)}}
			p.observe("panic")
		}
	}()

	if resp.FunctionCall == nil {
		return Result{Message: orApology(resp.Content)}
	}

	call := resp.FunctionCall
	switch call.Name {
	case backend.FunctionChatOnly:
		return p.parseChat(call.Arguments, resp.Content)
	case backend.FunctionProposeChanges:
		return p.parsePropose(call.Arguments)
	case backend.FunctionAnalyzeProgress:
		return p.parseAnalysis(call.Arguments)
	default:
		err := &ParseError{Function: call.Name, Stage: StageFunction, Err: errors.New("unsupported function")}
		p.logger.Warn("backend called unsupported function", "function", call.Name)
		p.observe("content")
		return Result{Message: orApology(resp.Content), Err: err}
	}
}

func (p *Parser) parseChat(raw, content string) Result {
	var args chatArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return p.salvage(backend.FunctionChatOnly, raw, err)
	}
	if err := p.validate.Struct(args); err != nil {
		if strings.TrimSpace(content) != "" {
			return Result{Message: content}
		}
		return p.salvage(backend.FunctionChatOnly, raw, err)
	}
	return Result{Message: args.Message}
}

func (p *Parser) parsePropose(raw string) Result {
	var args proposeArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return p.salvage(backend.FunctionProposeChanges, raw, err)
	}

	fail := func(stage Stage, err error) Result {
		perr := &ParseError{Function: backend.FunctionProposeChanges, Stage: stage, Err: err}
		p.logger.Warn("discarding invalid proposal", "error", perr)
		p.observe("message")
		msg := args.Message
		if strings.TrimSpace(msg) == "" {
			msg = incompleteProposalReply
		}
		return Result{Message: msg, Err: perr}
	}

	if err := p.validate.Struct(args); err != nil {
		return fail(StageFields, err)
	}
	if isNull(args.Changes) {
		return fail(StageFields, errors.New("changes is required"))
	}
	changes, err := p.decodeChanges(domain.ProposalType(args.ChangeType), args.Changes)
	if err != nil {
		return fail(StageChanges, err)
	}

	prop := domain.NewProposal(args.Title, args.Description, args.Reasoning, domain.NormalizePriority(args.Priority), changes)
	msg := args.Message
	if strings.TrimSpace(msg) == "" {
		msg = fmt.Sprintf("I'd suggest a change to your plan: %s. %s", args.Title, args.Description)
	}
	return Result{Message: msg, Proposal: prop}
}

func (p *Parser) decodeChanges(t domain.ProposalType, raw json.RawMessage) (domain.Changes, error) {
	switch t {
	case domain.ProposalExerciseReplacement:
		var c domain.ExerciseReplacement
		if err := p.decode(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.ProposalWorkoutModification:
		var c domain.WorkoutModification
		if err := p.decode(raw, &c); err != nil {
			return nil, err
		}
		if c.WorkoutChanges.IsEmpty() {
			return nil, errors.New("workoutChanges is empty")
		}
		return c, nil
	case domain.ProposalNutritionAdjustment:
		var c domain.NutritionAdjustment
		if err := p.decode(raw, &c); err != nil {
			return nil, err
		}
		if c.Goals == nil && len(c.WeeklyPlan) == 0 {
			return nil, errors.New("nutrition adjustment has neither goals nor weeklyPlan")
		}
		return c, nil
	case domain.ProposalProgressAnalysis:
		var c domain.ProgressAnalysis
		if err := p.decode(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChangeType, t)
	}
}

func (p *Parser) decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode changes: %w", err)
	}
	if err := p.validate.Struct(v); err != nil {
		return fmt.Errorf("validate changes: %w", err)
	}
	return nil
}

func (p *Parser) parseAnalysis(raw string) Result {
	var args analyzeArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return p.salvage(backend.FunctionAnalyzeProgress, raw, err)
	}

	result := &domain.AnalysisResult{
		ID:             uuid.NewString(),
		Timestamp:      p.now().UTC(),
		AnalysisType:   domain.AnalysisManual,
		ProgressStatus: domain.NormalizeProgressStatus(args.ProgressStatus),
		KeyFindings:    nonEmpty(args.KeyFindings),
		Achievements:   nonEmpty(args.Achievements),
		Concerns:       nonEmpty(args.Concerns),
	}
	for _, r := range args.Recommendations {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		result.Recommendations = append(result.Recommendations, domain.Recommendation{
			Text:     r.Text,
			Priority: domain.NormalizePriority(r.Priority),
		})
	}
	return Result{Message: FormatAnalysis(*result), Analysis: result}
}

func (p *Parser) salvage(function, raw string, cause error) Result {
	perr := &ParseError{Function: function, Stage: StageArguments, Err: cause}
	if p.salvager != nil {
		if msg, ok := p.salvager.Salvage(raw); ok {
			p.logger.Warn("salvaged message from malformed arguments", "function", function, "error", cause)
			p.observe("salvaged")
			return Result{Message: msg, Err: perr, Salvaged: true}
		}
	}
	p.logger.Warn("malformed function arguments", "function", function, "error", cause)
	p.observe("apology")
	return Result{Message: Apology, Err: perr}
}

func (p *Parser) observe(recovery string) {
	if p.recorder != nil {
		p.recorder.ObserveParseFailure(recovery)
	}
}

func orApology(s string) string {
	if strings.TrimSpace(s) == "" {
		return Apology
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
