// Package main is the analytics worker. It periodically rebuilds the
// strategic report of every institution, keeps the report cache warm and
// serves the report API with health and Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alem-hub/strategic-analytics/config"
	"github.com/alem-hub/strategic-analytics/internal/application/query"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/metrics"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/scheduler"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/alem-hub/strategic-analytics/internal/interface/http"
	"github.com/alem-hub/strategic-analytics/pkg/circuitbreaker"
	"github.com/alem-hub/strategic-analytics/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIG & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	log := setupLogger(cfg.Observability)
	appLog := logger.NewFromConfig(cfg.Observability.LogLevel, cfg.Observability.LogFormat).
		With(logger.String("app", cfg.App.Name))
	log.Info("starting analytics worker", "env", cfg.App.Environment, "version", cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolDefaults{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", "applied", applied)
	}
	onBreaker := circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	})
	snapshots := postgres.NewSnapshotRepository(dbConn, onBreaker)

	health := httpapi.NewHealthChecker(cfg.App.Version)
	health.AddCheck("database", httpapi.PingCheck(dbConn))
	health.AddCheck("snapshot_breaker", httpapi.BreakerCheck(snapshots.Breaker()))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. METRICS
	// ─────────────────────────────────────────────────────────────────────────
	var recorder *metrics.Recorder
	if cfg.Observability.MetricsEnabled {
		recorder = metrics.NewRecorder()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REPORT HANDLER (+ optional Redis cache)
	// ─────────────────────────────────────────────────────────────────────────
	opts := []query.HandlerOption{query.WithLogger(appLog)}
	if recorder != nil {
		opts = append(opts, query.WithRecorder(recorder))
	}
	var reportCache *redis.ReportCache
	if !cfg.Redis.Disabled {
		redisCache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, report cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			reportCache = redis.NewReportCache(redisCache, cfg.Redis.ReportTTL, onBreaker)
			opts = append(opts, query.WithCache(reportCache))
			health.AddOptionalCheck("redis", httpapi.PingCheck(redisCache))
			health.AddOptionalCheck("cache_breaker", httpapi.BreakerCheck(reportCache.Breaker()))
			log.Info("Redis connection established", "report_ttl", cfg.Redis.ReportTTL.String())
		}
	}
	reports := query.NewGetStrategicReportHandler(snapshots, cfg.AnalyticsPolicy(), cfg.Goals, opts...)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.Config{
		Logger:     log,
		JobTimeout: cfg.Scheduler.JobTimeout,
		RunOnStart: cfg.Scheduler.RunOnStart,
	}
	if recorder != nil {
		schedCfg.Observer = recorder
	}
	sched := scheduler.New(schedCfg)

	rebuild := jobs.NewRebuildReportsJob(snapshots, reports, snapshots, log, jobs.RebuildReportsConfig{
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		Timeout:       cfg.Scheduler.JobTimeout,
	})
	interval, err := scheduler.NewIntervalSchedule(cfg.Scheduler.ReportInterval)
	if err != nil {
		return fmt.Errorf("invalid report interval: %w", err)
	}
	if err := sched.Register(rebuild, interval); err != nil {
		return err
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = sched.Stop() }()
	} else {
		log.Info("scheduler disabled; running a single rebuild")
		if _, err := sched.RunNow(ctx, rebuild.Name()); err != nil {
			return err
		}
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP: REPORT API, HEALTH & METRICS
	// ─────────────────────────────────────────────────────────────────────────
	var srv *httpapi.Server
	if cfg.HTTP.Enabled {
		deps := httpapi.Dependencies{
			Reports: reports,
			Goals:   cfg.Goals,
			Health:  health,
			Logger:  appLog,
		}
		if reportCache != nil {
			deps.Latest = reportCache
		}
		if recorder != nil {
			deps.Metrics = recorder.Handler()
		}
		httpCfg := httpapi.DefaultConfig()
		httpCfg.Port = cfg.HTTP.Port
		httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout

		srv = httpapi.NewServer(httpCfg, deps)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("HTTP server failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown failed", "error", err)
		}
	}

	log.Info("shutdown completed")
	return nil
}

// setupLogger configures slog for the scheduler and jobs.
func setupLogger(cfg config.ObservabilityConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn", "warning":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
