/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the spirits ledger HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Build the logger
  3. Open catalog, SQLite store and inventory service
  4. Connect to NATS when NATS_URL is set
  5. Seed default products, start the consistency scheduler
  6. Start server with graceful shutdown

ENVIRONMENT:
  ADDR                   HTTP listen address (default :8080)
  DB_PATH                SQLite database path (default spirits.db, ":memory:" allowed)
  LOG_LEVEL, LOG_FORMAT  zerolog level; console or json
  CATALOG_PATH           catalog YAML (default: embedded)
  NATS_URL               publish change events when set
  UNDO_MODE              hard or soft
  CONSISTENCY_INTERVAL   0 disables the scheduler
  See internal/config for the full list.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, drain NATS, close the database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - internal/app: collaborator wiring
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/warp/spirits-ledger/api"
	"github.com/warp/spirits-ledger/events"
	"github.com/warp/spirits-ledger/internal/app"
	"github.com/warp/spirits-ledger/internal/config"
	"github.com/warp/spirits-ledger/internal/logging"
	"github.com/warp/spirits-ledger/inventory"
	"github.com/warp/spirits-ledger/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}

	m := metrics.New()
	recent := events.NewRecorder(cfg.EventBufferSize)
	notifiers := events.Fanout{recent}

	if cfg.NATSURL != "" {
		bus, err := events.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("connect nats")
		}
		defer bus.Close()
		notifiers = append(notifiers, events.NewNotifier(bus, cfg.NATSSubjectPrefix))
		logger.Info().Str("url", cfg.NATSURL).Str("prefix", cfg.NATSSubjectPrefix).Msg("publishing change events")
	}

	a, err := app.Open(cfg, logger,
		inventory.WithRecorder(m),
		inventory.WithNotifier(notifiers),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("open ledger")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()

	if cfg.SeedDefaultProducts {
		if _, err := api.SeedDefaults(ctx, a.Service, a.Catalog, logger); err != nil {
			logger.Fatal().Err(err).Msg("seed products")
		}
	}

	handler := api.NewHandler(a.Service, a.Catalog)
	handler.Log = logger
	handler.Events = recent
	handler.Reset = a.Store.Reset

	scheduler := api.NewConsistencyScheduler(a.Service, logger)
	scheduler.Observer = m
	scheduler.CheckInterval = cfg.ConsistencyInterval
	scheduler.Enabled = cfg.ConsistencyInterval > 0
	handler.Scheduler = scheduler
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Metrics:            m.Handler(),
		Ready:              a.Store.Ping,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("db", cfg.DBPath).
			Str("undo_mode", a.Service.UndoMode()).
			Msg("starting spirits ledger")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	logger.Info().Msg("server stopped")
}
