/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the quote engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + QUOTE_* environment)
  2. Build the logger
  3. Initialize SQLite store
  4. Connect the optional redis availability cache
  5. Wire resolver, coupon validator, notifier and quote service
  6. Configure HTTP router and start the session scheduler
  7. Start server with graceful shutdown

ENVIRONMENT:
  QUOTE_PORT                       HTTP port (default 8080)
  QUOTE_DB_PATH                    SQLite path, ":memory:" for in-memory
  QUOTE_LOG_LEVEL, QUOTE_LOG_FORMAT
  QUOTE_CORS_ORIGINS               Comma-separated
  QUOTE_AVAILABILITY_MAX_RETRIES   Default 2
  QUOTE_AVAILABILITY_BACKOFF       Default 500ms, multiplied by the attempt
  QUOTE_AVAILABILITY_CACHE_TTL     Redis TTL for results
  QUOTE_REDIS_ADDR                 Empty disables the cache
  QUOTE_SEED_DEMO                  Load demo scenarios into an empty database
  QUOTE_SHUTDOWN_TIMEOUT           Default 30s

  Flags -port and -db override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (QUOTE_SHUTDOWN_TIMEOUT)
  3. Stop the session scheduler
  4. Close redis and database connections
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Environment variables
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/quote-engine/api"
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/config"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/logging"
	"github.com/warp/quote-engine/quote"
	"github.com/warp/quote-engine/store/redis"
	"github.com/warp/quote-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	st, err := sqlite.New(cfg.DBPath, sqlite.WithLogger(logger.With().Str("component", "store").Logger()))
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info().Str("path", cfg.DBPath).Msg("database ready")

	// Availability resolver, with the redis cache when configured
	resolver := availability.NewResolver(st, logger.With().Str("component", "availability").Logger())
	resolver.MaxRetries = cfg.Availability.MaxRetries
	resolver.Backoff = cfg.Availability.Backoff

	var cache *redis.Cache
	if cfg.Redis.Addr != "" {
		cache, err = redis.New(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Availability.CacheTTL,
		}, logger)
		if err != nil {
			// The cache only saves reads; run without it.
			logger.Warn().Err(err).Msg("availability cache disabled")
			cache = nil
		} else {
			defer cache.Close()
			resolver.Cache = cache
		}
	}

	coupons := coupon.NewValidator(st, logger.With().Str("component", "coupon").Logger())
	notifier := quote.LogNotifier{Logger: logger.With().Str("component", "notifier").Logger()}
	quotes := quote.NewService(st, resolver, coupons, notifier, logger.With().Str("component", "quote").Logger())

	// Initialize handler
	handler := api.NewHandler(st, quotes, resolver, logger)
	if cache != nil {
		handler.Cache = cache
	}

	if cfg.SeedDemo {
		templates, err := st.ListTemplates(ctx)
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			if err := handler.SeedScenarios(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to seed demo scenarios")
			} else {
				logger.Info().Msg("demo scenarios loaded")
			}
		}
	}

	scheduler := api.NewSessionScheduler(quotes, logger)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		DevRoutes:   cfg.SeedDemo,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
