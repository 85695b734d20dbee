package worker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/worker"
)

// stubProvider is a scriptable upstream source for refresh job tests.
// Failures are keyed by coordinates; transient failures succeed once
// their budget is used up.
type stubProvider struct {
	mu        sync.Mutex
	calls     int
	failWith  map[string]error
	failTimes map[string]int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		failWith:  make(map[string]error),
		failTimes: make(map[string]int),
	}
}

func (s *stubProvider) Name() string {
	return "stub"
}

func (s *stubProvider) CurrentWeather(_ context.Context, lat, lon float64) (*weather.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	key := coordKey(lat, lon)
	if err, ok := s.failWith[key]; ok {
		if s.failTimes[key] != 0 {
			s.failTimes[key]--
			if s.failTimes[key] == 0 {
				delete(s.failWith, key)
				delete(s.failTimes, key)
			}
		}
		return nil, err
	}

	return &weather.Record{
		Temp:                 16.0,
		Humidity:             70,
		WindSpeed:            3.2,
		WindDeg:              225,
		ConditionMain:        "Rain",
		ConditionDescription: "Light rain",
		IconID:               "10d",
		ObservedAt:           time.Now().UTC(),
	}, nil
}

func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f:%.4f", lat, lon)
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// alwaysFail makes the coordinates fail on every call.
func (s *stubProvider) alwaysFail(lat, lon float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith[coordKey(lat, lon)] = err
}

// failNTimes makes the coordinates fail n times, then succeed.
func (s *stubProvider) failNTimes(lat, lon float64, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := coordKey(lat, lon)
	s.failWith[key] = err
	s.failTimes[key] = n
}

// fastRetryConfig keeps backoff sleeps out of the test runtime.
func fastRetryConfig() worker.RefreshConfig {
	return worker.RefreshConfig{
		Interval:       time.Minute,
		Concurrency:    3,
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func newTestJob(provider weather.Provider, cfg worker.RefreshConfig) *worker.RefreshJob {
	service := weather.NewService(weather.ServiceConfig{
		Provider: provider,
		Registry: locations.Default(),
		Cache: weather.NewCache(weather.CacheConfig{
			Logger: zerolog.Nop(),
			TTL:    time.Minute,
		}),
		Logger: zerolog.Nop(),
	})

	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  cfg,
		Service: service,
		Logger:  zerolog.Nop(),
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 25*time.Minute, cfg.Interval)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff)
}

func TestNewRefreshJob_AppliesDefaults(t *testing.T) {
	job := newTestJob(newStubProvider(), worker.RefreshConfig{})

	assert.Equal(t, 25*time.Minute, job.Interval())
}

func TestRefreshJob_Run(t *testing.T) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	result := job.Run(context.Background())

	require.NotNil(t, result)
	assert.Equal(t, 10, result.TotalLocations)
	assert.Equal(t, 10, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 10, result.Attempts)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.Equal(t, 10, provider.callCount())
}

func TestRefreshJob_Run_WarmsCache(t *testing.T) {
	provider := newStubProvider()

	service := weather.NewService(weather.ServiceConfig{
		Provider: provider,
		Registry: locations.Default(),
		Cache: weather.NewCache(weather.CacheConfig{
			Logger: zerolog.Nop(),
			TTL:    time.Minute,
		}),
		Logger: zerolog.Nop(),
	})
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  fastRetryConfig(),
		Service: service,
		Logger:  zerolog.Nop(),
	})

	_ = job.Run(context.Background())

	// Reads after a cycle come from the cache, not the provider.
	outcomes := service.FetchAll(context.Background())
	for _, out := range outcomes {
		require.True(t, out.OK(), "location %s", out.Location)
	}
	assert.Equal(t, 10, provider.callCount())
}

func TestRefreshJob_Run_PartialFailure(t *testing.T) {
	provider := newStubProvider()
	// Stonehenge rejects the key on every attempt; nothing else fails.
	provider.alwaysFail(51.1789, -1.8262, fmt.Errorf("%w: status 401", weather.ErrInvalidAPIKey))

	job := newTestJob(provider, fastRetryConfig())

	result := job.Run(context.Background())

	assert.Equal(t, 9, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Stonehenge", result.Errors[0].Location)
	assert.Equal(t, "invalid_api_key", result.Errors[0].Kind)

	// A rejected key is not retried, so attempts stay one per location.
	assert.Equal(t, 10, result.Attempts)
	assert.Equal(t, 10, provider.callCount())
}

func TestRefreshJob_RetriesTransientFailure(t *testing.T) {
	provider := newStubProvider()
	// Oxford fails twice with a connection error, then recovers.
	provider.failNTimes(51.7520, -1.2577, 2, fmt.Errorf("%w: connection refused", weather.ErrConnection))

	job := newTestJob(provider, fastRetryConfig())

	err := job.RefreshOne(context.Background(), "Oxford")

	require.NoError(t, err)
	assert.Equal(t, 3, provider.callCount())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.Retries)
}

func TestRefreshJob_RetriesExhausted(t *testing.T) {
	provider := newStubProvider()
	provider.alwaysFail(51.7520, -1.2577, fmt.Errorf("%w: connection refused", weather.ErrConnection))

	job := newTestJob(provider, fastRetryConfig())

	err := job.RefreshOne(context.Background(), "Oxford")

	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrConnection)
	assert.Equal(t, 3, provider.callCount())
}

func TestRefreshJob_PermanentErrorStopsRetry(t *testing.T) {
	provider := newStubProvider()
	provider.alwaysFail(51.7520, -1.2577, fmt.Errorf("%w: missing field", weather.ErrParsing))

	job := newTestJob(provider, fastRetryConfig())

	err := job.RefreshOne(context.Background(), "Oxford")

	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrParsing)
	assert.Equal(t, 1, provider.callCount())
}

func TestRefreshJob_RefreshOne_UnknownLocation(t *testing.T) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	err := job.RefreshOne(context.Background(), "Atlantis")

	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrUnknownLocation)
	assert.Equal(t, 0, provider.callCount())
}

func TestRefreshJob_Run_ContextCancellation(t *testing.T) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	// Should return promptly without refreshing anything.
	require.NotNil(t, result)
	assert.Equal(t, 10, result.TotalLocations)
	assert.Equal(t, 0, result.Successful)
}

func TestRefreshJob_GetMetrics(t *testing.T) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	_ = job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalCycles)
	assert.Equal(t, int64(10), metrics.LocationsOK)
	assert.Equal(t, int64(0), metrics.LocationsFailed)
	assert.NotZero(t, metrics.LastCycleAt)
	assert.Greater(t, metrics.LastCycleDuration, time.Duration(0))
}

func TestRefreshJob_GetMetrics_AccumulatesCycles(t *testing.T) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalCycles)
	assert.Equal(t, int64(20), metrics.LocationsOK)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	_ = job.Run(context.Background())

	snapshot := job.MetricsSnapshot()

	assert.Contains(t, snapshot, "total_cycles")
	assert.Contains(t, snapshot, "locations_ok")
	assert.Contains(t, snapshot, "locations_failed")
	assert.Contains(t, snapshot, "retries")
	assert.Contains(t, snapshot, "last_cycle_at")
	assert.Contains(t, snapshot, "last_cycle_duration")
}

func TestRefreshError_Fields(t *testing.T) {
	refreshErr := worker.RefreshError{
		Location: "Watergate Bay",
		Kind:     "connection_error",
		Error:    "connection refused",
	}

	assert.Equal(t, "Watergate Bay", refreshErr.Location)
	assert.Equal(t, "connection_error", refreshErr.Kind)
	assert.Equal(t, "connection refused", refreshErr.Error)
}

// BenchmarkRefreshJob_Run benchmarks a full refresh cycle.
func BenchmarkRefreshJob_Run(b *testing.B) {
	provider := newStubProvider()
	job := newTestJob(provider, fastRetryConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = job.Run(context.Background())
	}
}
