// Package api provides the HTTP API for the travel blog weather service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/handler"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/middleware"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	WeatherService *weather.Service
	Locations      *locations.Registry
	Providers      *resilience.Registry

	// RateLimit overrides the public API limit when RequestLimit > 0.
	RateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "travelblog-weather-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.Logger)
	locationsHandler := handler.NewLocationsHandler(cfg.Locations)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.WeatherService, cfg.Providers)

	publicLimit := cfg.RateLimit
	if publicLimit.RequestLimit <= 0 {
		publicLimit = middleware.PublicAPIRateLimit
	}
	publicRateLimit := middleware.RateLimitByIP(publicLimit)

	// Public API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(publicRateLimit)

		r.Route("/weather", func(r chi.Router) {
			// "all" is a reserved path, never a location name.
			r.Get("/all", weatherHandler.GetAll)
			r.Get("/{location}", weatherHandler.GetLocation)
		})

		r.Get("/locations", locationsHandler.ListLocations)
	})

	// Operational endpoints, not rate limited
	r.Route("/internal/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
		r.Get("/providers", opsHandler.ListProviders)
		r.Get("/metadata", opsHandler.GetMetadata)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/", opsHandler.CacheStatus)
			r.With(middleware.RequireJSON).Post("/invalidate", opsHandler.InvalidateCache)
		})
	})

	return r
}
