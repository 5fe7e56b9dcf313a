package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/ratebenchmark/internal/api/handlers"
	"github.com/zatekoja/ratebenchmark/internal/api/routes"
	"github.com/zatekoja/ratebenchmark/internal/application/services"
	"github.com/zatekoja/ratebenchmark/internal/bootstrap"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	"github.com/zatekoja/ratebenchmark/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	stack, err := bootstrap.NewRateStack(ctx, cfg, bootstrap.WithMetrics(metrics))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build rate reference stack")
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing rate cache")
		}
	}()

	warmer := services.NewCacheWarmingService(stack.Lookup, cfg.RateReference.WarmCodes, cfg.RateReference.WarmRegions)
	warmer.StartPeriodicWarming(ctx, cfg.RateReference.WarmInterval)

	// Set up router
	rateHandler := handlers.NewRateReferenceHandler(stack.Lookup, stack.Coordinator)
	router := routes.NewRouter(rateHandler, cfg.Server.AllowedOrigins, metrics)

	// Create HTTP server. Lookups for many codes can take several fetch timeouts.
	serverAddr := cfg.Server.ServerAddr()
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	stats := stack.Coordinator.Stats()
	log.Info().
		Int64("cache_hits", stats.CacheHits).
		Int64("upstream_calls", stats.UpstreamCalls).
		Int64("failures", stats.Failures).
		Msg("Server stopped")
}
