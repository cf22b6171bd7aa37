// Package app wires configuration into the running components shared by the
// server, the CLI and the operator tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/david/eu-grants-monitor/internal/api"
	"github.com/david/eu-grants-monitor/internal/auth"
	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/ingest"
	"github.com/david/eu-grants-monitor/internal/logging"
	"github.com/david/eu-grants-monitor/internal/metrics"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/monitor"
	"github.com/david/eu-grants-monitor/internal/notify"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

const defaultHTTPTimeout = 30 * time.Second

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   *db.Store
	Metrics *metrics.Metrics
	Monitor *monitor.Monitor
	Deps    ingest.Deps

	closers []func()
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg config.Config) (*db.Store, error) {
	conn, dialect, err := db.Open(ctx, cfg.DatabaseDriver(), cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db.NewStore(conn, dialect), nil
}

// IngestDeps builds the shared HTTP client and retry executor for sources.
func IngestDeps(cfg config.Config, logger *slog.Logger) ingest.Deps {
	timeout := defaultHTTPTimeout
	if s := cfg.Scrapers.HorizonEurope.TimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return ingest.Deps{
		Client: ingest.NewSafeClient(timeout),
		Exec:   resilience.NewExecutor(resilience.PolicyFromConfig(cfg.Resilience), logger),
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// New opens the store and assembles the monitor with every enabled source
// and notification channel.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.New(cfg.Logging.Service, cfg.Logging.Level)

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Metrics: metrics.New(cfg.Logging.Service),
		Deps:    IngestDeps(cfg, logger),
	}
	a.closers = append(a.closers, func() { store.Close() })

	sources, err := ingest.BuildSources(cfg.Scrapers, a.Deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build sources: %w", err)
	}
	monitorSources := make([]monitor.Source, 0, len(sources))
	for _, src := range sources {
		monitorSources = append(monitorSources, src)
	}

	notifier, closeNotifier, err := notify.FromConfig(cfg.Notifications, notify.Deps{
		Exec:   a.Deps.Exec,
		Logger: logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build notifiers: %w", err)
	}
	a.closers = append(a.closers, closeNotifier)

	a.Monitor = monitor.New(cfg, monitor.Options{
		Sources:  monitorSources,
		Notifier: notifier,
		Store:    store,
		Metrics:  a.Metrics,
		Logger:   logger,
		Now:      a.Deps.Now,
	})
	logger.Info("app_ready", "sources", len(sources), "notifiers", len(notifier.Notifiers()), "driver", cfg.DatabaseDriver())
	return a, nil
}

// Server builds the HTTP API on top of the assembled components.
func (a *App) Server() (*api.Server, error) {
	authSvc, err := auth.NewService(a.Store, a.Config.Server.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("auth setup: %w", err)
	}
	return api.NewServer(api.Options{
		Store:          a.Store,
		Auth:           authSvc,
		Monitor:        a.Monitor,
		Metrics:        a.Metrics,
		Profile:        a.Config.BusinessProfile,
		AdminSecret:    a.Config.Server.AdminSecret,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	})
}

// Serve runs the API until ctx ends, then shuts it down gracefully. When
// schedule is set the monitor also runs every check interval.
func (a *App) Serve(ctx context.Context, port string, schedule bool) error {
	srv, err := a.Server()
	if err != nil {
		return err
	}

	if schedule {
		profile := func() models.BusinessProfile { return a.Config.BusinessProfile }
		sched := monitor.NewScheduler(a.Monitor, a.Config.Alerts.CheckInterval(), profile, a.Logger)
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("scheduler_stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("shutdown_failed", "error", err)
		}
	}()

	a.Logger.Info("server_starting", "port", port, "scheduled", schedule)
	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
