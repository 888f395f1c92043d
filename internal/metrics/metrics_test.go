package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CacheHit()
	m.CacheMiss()
	m.ObserveBackend("ok", time.Second)
	m.ObserveTokens("gpt", 1, 2)
	m.SetSpend(1, true)
	m.ObserveProposal("exercise_replacement", "accepted")
	m.ObserveParseFailure("salvaged")
	m.ObserveAnalysis("manual")
	m.WatcherDelta(1)
}

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.SetSpend(0.42, true)

	if got := testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.DailySpendUSD); got != 0.42 {
		t.Fatalf("expected spend 0.42, got %v", got)
	}
	if got := testutil.ToFloat64(m.BudgetExceeded); got != 1 {
		t.Fatalf("expected exceeded flag, got %v", got)
	}
}
