package weather

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"

// Metrics holds the OpenTelemetry instruments for weather fetches and the
// cache in front of them. A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetchDuration metric.Float64Histogram
	fetchTotal    metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	staleServes   metric.Int64Counter
}

// NewMetrics creates the weather metrics instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	fetchDuration, err := meter.Float64Histogram(
		"weather.fetch.duration",
		metric.WithDescription("Duration of upstream weather fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"weather.fetch.total",
		metric.WithDescription("Total number of upstream weather fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"weather.cache.hit",
		metric.WithDescription("Number of weather cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"weather.cache.miss",
		metric.WithDescription("Number of weather cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	staleServes, err := meter.Int64Counter(
		"weather.cache.stale_serve",
		metric.WithDescription("Number of stale records served after failed refreshes"),
		metric.WithUnit("{serve}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fetchDuration: fetchDuration,
		fetchTotal:    fetchTotal,
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		staleServes:   staleServes,
	}, nil
}

// RecordFetch records one upstream fetch with its outcome.
func (m *Metrics) RecordFetch(ctx context.Context, location string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("location", location),
		attribute.String("outcome", fetchOutcome(err)),
	}

	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func fetchOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return Kind(err)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

// RecordStaleServe records a stale record being served in place of a
// failed refresh.
func (m *Metrics) RecordStaleServe(ctx context.Context) {
	if m == nil {
		return
	}
	m.staleServes.Add(ctx, 1)
}
