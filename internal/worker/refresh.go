package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
)

// RefreshJob drives forced cache refreshes through the weather service.
type RefreshJob struct {
	config  RefreshConfig
	service *weather.Service
	logger  zerolog.Logger

	// Metrics
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalCycles     int64
	LocationsOK     int64
	LocationsFailed int64
	Retries         int64

	// Timings
	LastCycleAt       time.Time
	LastCycleDuration time.Duration
	TotalDuration     time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Service *weather.Service
	Logger  zerolog.Logger
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	def := DefaultRefreshConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}

	return &RefreshJob{
		config:  config,
		service: cfg.Service,
		logger:  cfg.Logger,
		metrics: &RefreshMetrics{},
	}
}

// Interval returns the configured cycle interval.
func (j *RefreshJob) Interval() time.Duration {
	return j.config.Interval
}

// RefreshResult contains the result of one refresh cycle.
type RefreshResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalLocations int
	Successful     int
	Failed         int
	Attempts       int
	Errors         []RefreshError
}

// RefreshError records a location that could not be refreshed.
type RefreshError struct {
	Location string
	Kind     string
	Error    string
}

// Run refreshes every itinerary location once and reports the outcome.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()

	locs := j.service.Locations()
	names := make([]string, len(locs))
	for i, loc := range locs {
		names[i] = loc.Name
	}

	result := &RefreshResult{
		StartTime:      startTime,
		TotalLocations: len(names),
	}

	j.logger.Info().
		Int("locations", result.TotalLocations).
		Int("concurrency", j.config.Concurrency).
		Msg("starting weather refresh cycle")

	// Create work channels
	namesChan := make(chan string, len(names))
	resultsChan := make(chan locationResult, len(names))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, namesChan, resultsChan)
		}()
	}

	// Send locations to workers
	for _, name := range names {
		namesChan <- name
	}
	close(namesChan)

	// Wait for workers to complete
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results
	for lr := range resultsChan {
		result.Attempts += lr.attempts
		if lr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{
			Location: lr.location,
			Kind:     weather.Kind(lr.err),
			Error:    lr.err.Error(),
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	// Update metrics
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("attempts", result.Attempts).
		Msg("weather refresh cycle completed")

	return result
}

// RefreshOne refreshes a single location with the same retry policy a
// full cycle applies.
func (j *RefreshJob) RefreshOne(ctx context.Context, name string) error {
	lr := j.refreshLocation(ctx, name)
	if lr.err != nil {
		j.logger.Warn().
			Str("location", name).
			Str("kind", weather.Kind(lr.err)).
			Err(lr.err).
			Msg("location refresh failed")
		return lr.err
	}

	j.logger.Debug().
		Str("location", name).
		Int("attempts", lr.attempts).
		Msg("location refreshed")
	return nil
}

type locationResult struct {
	location string
	attempts int
	err      error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, names <-chan string, results chan<- locationResult) {
	for name := range names {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshLocation(ctx, name)
		}
	}
}

// refreshLocation forces one location through the cache, retrying
// transient failures with exponential backoff. Failures a retry cannot
// fix stop the attempt loop immediately.
func (j *RefreshJob) refreshLocation(ctx context.Context, name string) locationResult {
	locCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = j.config.InitialBackoff
	bo.MaxInterval = j.config.MaxBackoff
	bo.MaxElapsedTime = 0 // attempts are bounded by MaxAttempts

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(j.config.MaxAttempts-1)), locCtx)

	attempts := 0
	operation := func() error {
		attempts++
		outcome := j.service.Refresh(locCtx, name)
		if outcome.Err == nil {
			return nil
		}
		if permanentRefreshError(outcome.Err) {
			return backoff.Permanent(outcome.Err)
		}
		return outcome.Err
	}

	err := backoff.Retry(operation, policy)
	if attempts > 1 {
		atomic.AddInt64(&j.metrics.Retries, int64(attempts-1))
	}

	return locationResult{location: name, attempts: attempts, err: err}
}

// permanentRefreshError reports whether retrying can ever change the
// outcome. A malformed response, a rejected key, a name off the
// itinerary, and an open breaker all fail identically on the next try.
func permanentRefreshError(err error) bool {
	return errors.Is(err, weather.ErrParsing) ||
		errors.Is(err, weather.ErrInvalidAPIKey) ||
		errors.Is(err, weather.ErrUnknownLocation) ||
		errors.Is(err, resilience.ErrCircuitOpen)
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalCycles++
	j.metrics.LocationsOK += int64(result.Successful)
	j.metrics.LocationsFailed += int64(result.Failed)
	j.metrics.LastCycleAt = result.EndTime
	j.metrics.LastCycleDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalCycles:       j.metrics.TotalCycles,
		LocationsOK:       j.metrics.LocationsOK,
		LocationsFailed:   j.metrics.LocationsFailed,
		Retries:           atomic.LoadInt64(&j.metrics.Retries),
		LastCycleAt:       j.metrics.LastCycleAt,
		LastCycleDuration: j.metrics.LastCycleDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_cycles":        m.TotalCycles,
		"locations_ok":        m.LocationsOK,
		"locations_failed":    m.LocationsFailed,
		"retries":             m.Retries,
		"last_cycle_at":       m.LastCycleAt,
		"last_cycle_duration": m.LastCycleDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
