// Package config loads service configuration from the environment, with
// optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds settings shared by the API server and the refresh worker.
type Config struct {
	// OpenWeatherMap access.
	APIKey  string `validate:"required"`
	BaseURL string `validate:"required,url"`

	// HTTP server.
	Port        string `validate:"required"`
	Environment string `validate:"required"`
	LogLevel    string

	// Cache behaviour.
	CacheTTL     time.Duration `validate:"gt=0"`
	StaleIfError time.Duration `validate:"gt=0"`

	// Fetch behaviour.
	FetchTimeout  time.Duration `validate:"gt=0"`
	MaxConcurrent int           `validate:"gt=0"`

	// Public API rate limiting.
	RateLimitCalls  int           `validate:"gt=0"`
	RateLimitPeriod time.Duration `validate:"gt=0"`

	// Refresh worker.
	RefreshInterval    time.Duration `validate:"gt=0"`
	PubSubProject      string
	PubSubSubscription string

	// Telemetry.
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; deployed environments
// set variables directly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:  os.Getenv("OPENWEATHERMAP_API_KEY"),
		BaseURL: getEnv("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org/data/2.5"),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CacheTTL:     getDuration("CACHE_TIMEOUT", 30*time.Minute),
		StaleIfError: getDuration("CACHE_STALE_IF_ERROR", 1*time.Hour),

		FetchTimeout:  getDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxConcurrent: getInt("FETCH_MAX_CONCURRENT", 5),

		RateLimitCalls:  getInt("RATE_LIMIT_CALLS", 60),
		RateLimitPeriod: getDuration("RATE_LIMIT_PERIOD", 1*time.Minute),

		RefreshInterval:    getDuration("REFRESH_INTERVAL", 25*time.Minute),
		PubSubProject:      os.Getenv("PUBSUB_PROJECT"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),

		TelemetryEnabled: getBool("OTEL_ENABLED", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

var apiKeyFormat = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ValidAPIKeyFormat reports whether the API key is a 32-character hex
// string, the shape OpenWeatherMap issues. A mismatch deserves a startup
// warning but is not fatal.
func (c *Config) ValidAPIKeyFormat() bool {
	return apiKeyFormat.MatchString(strings.ToLower(c.APIKey))
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// getDuration parses name as a Go duration ("30m") or as a bare number
// of seconds ("1800").
func getDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func getBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
