// Package metrics provides Prometheus metrics for the coaching assistant.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	CacheRequestsTotal *prometheus.CounterVec

	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration prometheus.Histogram
	TokensTotal            *prometheus.CounterVec

	DailySpendUSD   prometheus.Gauge
	BudgetExceeded  prometheus.Gauge
	ProposalsTotal  *prometheus.CounterVec
	ParseFailures   *prometheus.CounterVec
	AnalysisRuns    *prometheus.CounterVec
	ActiveWatchers  prometheus.Gauge
	ServerStartTime time.Time
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ServerStartTime: time.Now(),
		CacheRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcoach_response_cache_requests_total",
			Help: "Response cache lookups by result",
		}, []string{"result"}),
		BackendRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcoach_backend_requests_total",
			Help: "Completion requests by outcome",
		}, []string{"outcome"}),
		BackendRequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitcoach_backend_request_duration_seconds",
			Help:    "Duration of completion requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcoach_backend_tokens_total",
			Help: "Tokens consumed by direction",
		}, []string{"model", "direction"}),
		DailySpendUSD: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitcoach_daily_spend_usd",
			Help: "Estimated spend for the current UTC day",
		}),
		BudgetExceeded: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitcoach_daily_budget_exceeded",
			Help: "1 when the soft daily budget is exceeded",
		}),
		ProposalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcoach_proposals_total",
			Help: "Proposals by type and outcome",
		}, []string{"type", "outcome"}),
		ParseFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcoach_parse_failures_total",
			Help: "Structured response parse failures by recovery path",
		}, []string{"recovery"}),
		AnalysisRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitcoach_analysis_runs_total",
			Help: "Progress analyses by trigger",
		}, []string{"trigger"}),
		ActiveWatchers: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitcoach_notification_connections",
			Help: "Open notification WebSocket connections",
		}),
	}
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheRequestsTotal.WithLabelValues("hit").Inc()
	}
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}
}

// ObserveBackend records one completion request.
func (m *Metrics) ObserveBackend(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(outcome).Inc()
	m.BackendRequestDuration.Observe(d.Seconds())
}

// ObserveTokens records token usage.
func (m *Metrics) ObserveTokens(model string, in, out int) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues(model, "input").Add(float64(in))
	m.TokensTotal.WithLabelValues(model, "output").Add(float64(out))
}

// SetSpend publishes the running daily spend.
func (m *Metrics) SetSpend(usd float64, exceeded bool) {
	if m == nil {
		return
	}
	m.DailySpendUSD.Set(usd)
	if exceeded {
		m.BudgetExceeded.Set(1)
	} else {
		m.BudgetExceeded.Set(0)
	}
}

// ObserveProposal records a proposal lifecycle event.
func (m *Metrics) ObserveProposal(proposalType, outcome string) {
	if m != nil {
		m.ProposalsTotal.WithLabelValues(proposalType, outcome).Inc()
	}
}

// ObserveParseFailure records how a malformed response was recovered.
func (m *Metrics) ObserveParseFailure(recovery string) {
	if m != nil {
		m.ParseFailures.WithLabelValues(recovery).Inc()
	}
}

// ObserveAnalysis records an analysis run.
func (m *Metrics) ObserveAnalysis(trigger string) {
	if m != nil {
		m.AnalysisRuns.WithLabelValues(trigger).Inc()
	}
}

// WatcherDelta adjusts the open notification connection gauge.
func (m *Metrics) WatcherDelta(d float64) {
	if m != nil {
		m.ActiveWatchers.Add(d)
	}
}
