// Package cost tracks estimated backend spend against a soft daily budget.
package cost

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDailyBudgetUSD is the soft ceiling used when none is configured.
const DefaultDailyBudgetUSD = 1.00

// Rate is the price of 1K tokens in USD.
type Rate struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// DefaultModel prices models missing from the rate table.
const DefaultModel = "gpt-4o-mini"

// DefaultRates returns the built-in pricing table.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		"gpt-4o":        {InputPer1K: 0.0025, OutputPer1K: 0.01},
		"gpt-4.1-mini":  {InputPer1K: 0.0004, OutputPer1K: 0.0016},
		"gpt-4.1":       {InputPer1K: 0.002, OutputPer1K: 0.008},
		"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
	}
}

// Recorder receives spend updates, typically a metrics sink.
type Recorder interface {
	SetSpend(usd float64, exceeded bool)
	ObserveTokens(model string, in, out int)
}

// Snapshot is a point-in-time view of the governor.
type Snapshot struct {
	Day       string  `json:"day"`
	SpentUSD  float64 `json:"spent_usd"`
	BudgetUSD float64 `json:"budget_usd"`
	Calls     int     `json:"calls"`
	Exceeded  bool    `json:"exceeded"`
}

// Governor keeps a running per-day cost estimate. It is advisory: TrackCall
// reports whether spend is still within budget but never blocks a call.
type Governor struct {
	mu           sync.Mutex
	rates        map[string]Rate
	defaultModel string
	budget       float64
	day          string
	spent        float64
	calls        int
	now          func() time.Time
	recorder     Recorder
	logger       *slog.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithRates replaces the pricing table.
func WithRates(rates map[string]Rate) Option {
	return func(g *Governor) {
		if len(rates) > 0 {
			g.rates = rates
		}
	}
}

// WithDefaultModel selects the rate applied to unknown models.
func WithDefaultModel(model string) Option {
	return func(g *Governor) {
		if model != "" {
			g.defaultModel = model
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithRecorder publishes spend to r.
func WithRecorder(r Recorder) Option {
	return func(g *Governor) { g.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Governor) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGovernor creates a governor with the given soft daily budget.
func NewGovernor(budgetUSD float64, opts ...Option) *Governor {
	if budgetUSD <= 0 {
		budgetUSD = DefaultDailyBudgetUSD
	}
	g := &Governor{
		rates:        DefaultRates(),
		defaultModel: DefaultModel,
		budget:       budgetUSD,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.day = g.today()
	return g
}

func (g *Governor) today() string {
	return g.now().UTC().Format("2006-01-02")
}

// Estimate returns the USD cost of a call without recording it.
func (g *Governor) Estimate(inputTokens, outputTokens int, model string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.estimateLocked(inputTokens, outputTokens, model)
}

func (g *Governor) estimateLocked(in, out int, model string) float64 {
	rate, ok := g.rates[model]
	if !ok {
		rate = g.rates[g.defaultModel]
	}
	return float64(in)/1000*rate.InputPer1K + float64(out)/1000*rate.OutputPer1K
}

// TrackCall adds a call to today's spend and reports whether the total is
// still within the soft budget.
func (g *Governor) TrackCall(inputTokens, outputTokens int, model string) bool {
	g.mu.Lock()
	if day := g.today(); day != g.day {
		g.day, g.spent, g.calls = day, 0, 0
	}
	g.spent += g.estimateLocked(inputTokens, outputTokens, model)
	g.calls++
	spent, within := g.spent, g.spent <= g.budget
	g.mu.Unlock()

	if g.recorder != nil {
		g.recorder.ObserveTokens(model, inputTokens, outputTokens)
		g.recorder.SetSpend(spent, !within)
	}
	if !within {
		g.logger.Warn("daily assistant budget exceeded", "spent_usd", spent, "budget_usd", g.budget, "model", model)
	}
	return within
}

// Snapshot returns the current state.
func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if day := g.today(); day != g.day {
		return Snapshot{Day: day, BudgetUSD: g.budget}
	}
	return Snapshot{
		Day:       g.day,
		SpentUSD:  g.spent,
		BudgetUSD: g.budget,
		Calls:     g.calls,
		Exceeded:  g.spent > g.budget,
	}
}

// Reset clears today's totals.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.day, g.spent, g.calls = g.today(), 0, 0
	if g.recorder != nil {
		g.recorder.SetSpend(0, false)
	}
}
