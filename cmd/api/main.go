package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/api"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/config"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/database"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/metrics"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/repository"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/retry"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/usage"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/webhook"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting eventcore",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("tenant_config_source", cfg.TenantConfigSource),
		slog.Bool("usage_enabled", cfg.UsageEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database is only opened when something needs it
	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("connected to database")
	}

	m := metrics.NewMetrics(nil)

	b := bus.New(logger, bus.Options{
		Retry: retry.Policy{
			MaxRetries: cfg.BusMaxRetries,
			Delay:      cfg.BusRetryDelay,
			Multiplier: cfg.BusRetryBackoff,
			MaxDelay:   cfg.BusMaxRetryDelay,
		},
		HandlerTimeout: cfg.BusHandlerTimeout,
		DedupSize:      cfg.BusDedupSize,
		DedupWindow:    cfg.BusDedupWindow,
		MaxConcurrency: cfg.BusMaxConcurrency,
		Observer:       m.ObserveTransition,
	})
	m.RegisterBus(b)

	deps := &api.Dependencies{
		Bus:     b,
		Metrics: m,
		Audit:   audit.NewSlogLogger(logger),
	}

	var tenantRepo *repository.TenantRepository
	if pool != nil {
		tenantRepo = repository.NewTenantRepository(pool)
		deps.Tenants = tenantRepo
		deps.TenantDirectory = tenantRepo
		deps.Checks = map[string]handler.ReadinessCheck{
			"database": func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
		}
	}

	// Tenant webhook configuration
	var source webhook.ConfigSource
	switch cfg.TenantConfigSource {
	case config.SourcePostgres:
		source = webhook.NewPostgresSource(tenantRepo)
		deps.WebhookWriter = tenantRepo
	default:
		source = webhook.NewFileSource(cfg.TenantConfigDir)
	}
	store := webhook.NewConfigStore(source, cfg.TenantConfigCacheSize, cfg.TenantConfigCacheTTL, logger)
	deps.Webhooks = store

	webhook.NewDispatcher(store, cfg.WebhookTimeout, logger, webhook.WithRecorder(m)).Register(b)

	hub := ws.NewHub(logger)
	hub.Register(b)
	deps.Hub = hub

	audit.NewSubscriber(deps.Audit).Register(b)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.TenantConfigSource == config.SourceFile && cfg.TenantConfigWatch {
		watcher, err := webhook.NewWatcher(cfg.TenantConfigDir, store, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	if cfg.UsageEnabled {
		usageRepo := usage.NewRepository(pool)
		usageService := usage.NewService(usageRepo, b, logger)
		usage.NewMeter(usageService, logger).Register(b)
		deps.Usage = usageService

		worker := usage.NewWorker(usageService, usageRepo, logger, cfg.UsageQuotaSchedule)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	reporter := metrics.NewReporter(b, logger, cfg.MetricsReportInterval)
	g.Go(func() error {
		reporter.Start(gctx)
		return nil
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	router := api.NewRouter(logger, deps)
	router.Setup()

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		done := make(chan error, 1)
		go func() { done <- router.Shutdown() }()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("shutdown error", slog.Any("error", err))
			}
		case <-time.After(shutdownTimeout):
			logger.Warn("server shutdown timed out")
		}
		return nil
	})

	err = g.Wait()

	// In-flight deliveries finish or are abandoned at their next retry wait
	b.Close()
	logger.Info("server stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
