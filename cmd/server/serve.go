package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ashureev/fitcoach/internal/agent"
	"github.com/ashureev/fitcoach/internal/analysis"
	"github.com/ashureev/fitcoach/internal/api"
	"github.com/ashureev/fitcoach/internal/config"
	"github.com/ashureev/fitcoach/internal/healthsrv"
	"github.com/ashureev/fitcoach/internal/identity"
	"github.com/ashureev/fitcoach/internal/middleware"
	"github.com/ashureev/fitcoach/internal/notify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, notification socket and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// Initialize handlers.
	base := api.NewHandler(c.repo)
	healthHandler := api.NewHealthHandler(c.repo, c.client, c.governor)
	limiter := agent.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	coachHandler := agent.NewHandler(c.service, limiter)
	defer coachHandler.Close()
	wsHandler := notify.NewHandler(c.hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		ExtraHeaders:   cfg.CORS.ExtraHeaders,
		MaxAge:         cfg.CORS.MaxAge,
	}))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	// Everything else carries an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(c.repo, cfg.IsDevelopment()))
		coachHandler.RegisterRoutes(r)
		api.NewProfileHandler(base).RegisterRoutes(r)
		api.NewPlanHandler(base).RegisterRoutes(r)
		api.NewProgressHandler(base).RegisterRoutes(r)
		r.Get("/ws/notifications", wsHandler.ServeHTTP)
	})

	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}
	health := healthsrv.New(c.repo, slog.Default())
	healthDone := health.Watch(ctx, 0)
	go func() {
		if err := health.Serve(grpcLis); err != nil {
			slog.Error("gRPC health server failed", "error", err)
		}
	}()

	janitorDone := c.service.StartJanitor(ctx, time.Minute, agent.DefaultConversationIdle)

	workerDone := closedChan()
	if cfg.Analysis.Enabled {
		workerDone = analysis.StartWorker(ctx, c.scheduler, activeUsers{repo: c.repo, window: cfg.Analysis.ActiveWindow}, analysis.WorkerConfig{
			Interval:    cfg.Analysis.SweepInterval,
			Concurrency: cfg.Analysis.Concurrency,
			OnReport:    c.service.DeliverReport,
		})
		slog.Info("Analysis worker started", "interval", cfg.Analysis.SweepInterval)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stop()
		return fmt.Errorf("http server: %w", err)
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	for _, done := range []<-chan struct{}{healthDone, janitorDone, workerDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			slog.Warn("Background worker did not stop in time")
		}
	}

	slog.Info("Server stopped successfully")
	return nil
}

// activeUsers limits analysis sweeps to recently seen users.
type activeUsers struct {
	repo interface {
		ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
	}
	window time.Duration
}

func (a activeUsers) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	if cutoff := time.Now().Add(-a.window); cutoff.After(since) {
		since = cutoff
	}
	return a.repo.ActiveUserIDs(ctx, since)
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
