// Package main provides the entrypoint for the weather refresh worker.
// The worker keeps its weather cache warm on a schedule and serves the
// refresh metrics over a small health surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/config"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/telemetry"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather/openweathermap"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "travelblog-weather-worker"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Dur("interval", cfg.RefreshInterval).
		Msg("starting weather refresh worker")

	// Initialize OpenTelemetry
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       true,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Provider health registry and the breaker-guarded upstream client
	providers := resilience.NewRegistry()

	cbConfig := resilience.DefaultCircuitBreakerConfig(openweathermap.ProviderName)
	cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}

	owmClient := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:           openweathermap.ProviderName,
			Timeout:        cfg.FetchTimeout,
			CircuitBreaker: &cbConfig,
			Registry:       providers,
		}),
		Logger: log,
	})

	weatherMetrics, err := weather.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize weather metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: owmClient,
		Registry: locations.Default(),
		Cache: weather.NewCache(weather.CacheConfig{
			Logger:       log,
			TTL:          cfg.CacheTTL,
			StaleIfError: cfg.StaleIfError,
			FetchTimeout: cfg.FetchTimeout,
			Metrics:      weatherMetrics,
		}),
		Logger:        log,
		Metrics:       weatherMetrics,
		FetchTimeout:  cfg.FetchTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Interval: cfg.RefreshInterval,
		},
		Service: weatherService,
		Logger:  log,
	})

	// Health surface for the container platform
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(refreshJob.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Refresh loop: prewarm immediately, then hold the cycle interval.
	go func() {
		refreshJob.Run(ctx)

		ticker := time.NewTicker(refreshJob.Interval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshJob.Run(ctx)
			}
		}
	}()

	// On-demand refreshes over Pub/Sub, when configured
	if cfg.PubSubProject != "" && cfg.PubSubSubscription != "" {
		pubsubHandler, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProject,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub handler")
		}
		defer pubsubHandler.Close()

		go func() {
			if recvErr := pubsubHandler.Start(ctx); recvErr != nil {
				log.Error().Err(recvErr).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured, running on schedule only")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
