// Package main provides the entrypoint for the travel blog weather API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/middleware"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/config"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/telemetry"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "travelblog-weather-api"

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
		Str("environment", cfg.Environment).
		Msg("starting weather API")

	if !cfg.ValidAPIKeyFormat() {
		log.Warn().Msg("OpenWeatherMap API key does not look like a 32-char hex key")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize HTTP metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	weatherMetrics, err := weather.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize weather metrics")
		os.Exit(1)
	}

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

	// Itinerary, cache, and the service tying them together
	itinerary := locations.Default()

	cache := weather.NewCache(weather.CacheConfig{
		Logger:       log,
		TTL:          cfg.CacheTTL,
		StaleIfError: cfg.StaleIfError,
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      weatherMetrics,
	})

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider:      owmClient,
		Registry:      itinerary,
		Cache:         cache,
		Logger:        log,
		Metrics:       weatherMetrics,
		FetchTimeout:  cfg.FetchTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	log.Info().
		Int("locations", itinerary.Len()).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("weather service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        httpMetrics,
		WeatherService: weatherService,
		Locations:      itinerary,
		Providers:      providers,
		RateLimit: middleware.RateLimitConfig{
			RequestLimit: cfg.RateLimitCalls,
			WindowLength: cfg.RateLimitPeriod,
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
