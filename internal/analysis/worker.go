package analysis

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepInterval = time.Hour
	defaultConcurrency   = 4
	// activeWindow limits sweeps to users seen recently.
	activeWindow = 30 * 24 * time.Hour
)

// UserLister returns users active since a point in time.
type UserLister interface {
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
}

// ReportCallback receives every analysis the worker produces.
type ReportCallback func(ctx context.Context, userID string, report *Report)

// WorkerConfig configures StartWorker.
type WorkerConfig struct {
	Interval    time.Duration
	Concurrency int
	OnReport    ReportCallback
}

// StartWorker runs a background goroutine that periodically runs automatic
// analyses for active users. The returned channel is closed once the worker
// has stopped after ctx is cancelled.
func StartWorker(ctx context.Context, sched *Scheduler, users UserLister, cfg WorkerConfig) <-chan struct{} {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	done := make(chan struct{})
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("analysis worker started", "interval", cfg.Interval, "concurrency", cfg.Concurrency)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, sched, users, cfg)
			case <-ctx.Done():
				slog.Info("analysis worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, sched *Scheduler, users UserLister, cfg WorkerConfig) {
	ids, err := users.ActiveUserIDs(ctx, sched.now().Add(-activeWindow))
	if err != nil {
		slog.Error("analysis worker failed to list users", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	var ran atomic.Int64
	for _, id := range ids {
		g.Go(func() error {
			report, err := sched.RunAutomatic(gctx, id)
			if err != nil {
				slog.Warn("automatic analysis failed", "user_id", id, "error", err)
				return nil
			}
			if report == nil {
				return nil
			}
			ran.Add(1)
			if cfg.OnReport != nil {
				cfg.OnReport(gctx, id, report)
			}
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("analysis sweep completed", "users", len(ids), "analyses", ran.Load())
}
