package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ashureev/fitcoach/internal/agent"
	"github.com/ashureev/fitcoach/internal/analysis"
	"github.com/ashureev/fitcoach/internal/backend"
	"github.com/ashureev/fitcoach/internal/cache"
	"github.com/ashureev/fitcoach/internal/config"
	"github.com/ashureev/fitcoach/internal/cost"
	"github.com/ashureev/fitcoach/internal/metrics"
	"github.com/ashureev/fitcoach/internal/notify"
	"github.com/ashureev/fitcoach/internal/proposal"
	"github.com/ashureev/fitcoach/internal/store"
)

// components is the wired object graph shared by every subcommand.
type components struct {
	cfg       *config.Config
	repo      *store.SQLiteStore
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	governor  *cost.Governor
	client    *backend.Client
	hub       *notify.Hub
	scheduler *analysis.Scheduler
	service   *agent.Service
}

func wire(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := slog.Default()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	governor, err := newGovernor(cfg, m, logger)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	client := backend.NewClient(backend.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, backend.WithTracker(governor), backend.WithObserver(m), backend.WithLogger(logger))
	if !client.Configured() {
		slog.Warn("LLM_API_KEY not set, the assistant will answer with a canned reply")
	}

	parser := proposal.NewParser(proposal.WithRecorder(m), proposal.WithLogger(logger))
	responses := cache.New[backend.Response](cfg.Cache.TTL, cache.WithObserver[backend.Response](m))
	hub := notify.NewHub(m)

	loader := agent.NewLoader(repo)
	scheduler := analysis.NewScheduler(repo, loader, client, parser,
		analysis.WithRecorder(m), analysis.WithLogger(logger))

	service := agent.NewService(repo, client, parser, responses,
		agent.WithNotifier(hub),
		agent.WithAnalyst(scheduler),
		agent.WithRecorder(m),
		agent.WithLogger(logger),
	)

	return &components{
		cfg:       cfg,
		repo:      repo,
		registry:  registry,
		metrics:   m,
		governor:  governor,
		client:    client,
		hub:       hub,
		scheduler: scheduler,
		service:   service,
	}, nil
}

func newGovernor(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*cost.Governor, error) {
	budget := cfg.Cost.DailyBudgetUSD
	opts := []cost.Option{cost.WithRecorder(m), cost.WithLogger(logger)}

	if cfg.Cost.PricingFile != "" {
		pf, err := cost.LoadPricing(cfg.Cost.PricingFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pf.Options()...)
		if pf.DailyBudgetUSD > 0 {
			budget = pf.DailyBudgetUSD
		}
		slog.Info("Pricing table loaded", "path", cfg.Cost.PricingFile, "models", len(pf.Models))
	}
	return cost.NewGovernor(budget, opts...), nil
}

func (c *components) Close() {
	if err := c.repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}
