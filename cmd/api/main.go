package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/figarolabs/figaro-booking/internal/analytics"
	"github.com/figarolabs/figaro-booking/internal/api/router"
	"github.com/figarolabs/figaro-booking/internal/audit"
	"github.com/figarolabs/figaro-booking/internal/booking"
	"github.com/figarolabs/figaro-booking/internal/catalog"
	appconfig "github.com/figarolabs/figaro-booking/internal/config"
	"github.com/figarolabs/figaro-booking/internal/flow"
	"github.com/figarolabs/figaro-booking/internal/gcal"
	"github.com/figarolabs/figaro-booking/internal/http/handlers"
	"github.com/figarolabs/figaro-booking/internal/observability/metrics"
	"github.com/figarolabs/figaro-booking/internal/schedule"
	"github.com/figarolabs/figaro-booking/internal/session"
	"github.com/figarolabs/figaro-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting figaro-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		logger.Error("failed to build catalog", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	sessionStore := session.NewStore(rdb, nil)

	ctx := context.Background()
	calendarSvc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.GoogleCredentialsFile),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		logger.Error("failed to create calendar service", "error", err)
		os.Exit(1)
	}
	cal := gcal.NewClient(calendarSvc, cfg.CalendarID, cat.Location, logger).
		WithTimeout(cfg.CalendarTimeout).
		WithRetry(cfg.CalendarRetryAttempts, cfg.CalendarRetryBase)

	calc := schedule.NewCalculator(cat, cal)
	finder := schedule.NewFinder(cat, cal)
	executor := booking.NewExecutor(cal, calc, finder, logger)

	turnMetrics := metrics.NewTurnMetrics(nil)
	engine := flow.NewEngine(sessionStore, cat, calc, executor, logger).
		WithMetrics(turnMetrics)

	if cfg.SpreadsheetID != "" {
		sheetsSvc, err := sheets.NewService(ctx,
			option.WithCredentialsFile(cfg.GoogleCredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
		if err != nil {
			logger.Error("failed to create sheets service", "error", err)
			os.Exit(1)
		}
		engine.WithFallbackRecorder(analytics.NewSheetsRecorder(sheetsSvc, cfg.SpreadsheetID, logger))
	} else {
		logger.Warn("SPREADSHEET_ID not set, fallback turns will not be recorded")
	}

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		auditStore := audit.NewStore(pool)
		if err := auditStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure audit schema", "error", err)
			os.Exit(1)
		}
		engine.WithAuditor(auditStore)
	} else {
		logger.Warn("DATABASE_URL not set, turn audit disabled")
	}

	r := router.New(&router.Config{
		Logger:         logger,
		TurnHandler:    handlers.NewTurnHandler(engine, logger),
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		pool.Close()
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("redis close failed", "error", err)
	}

	logger.Info("server stopped")
}
