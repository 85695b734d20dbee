// Package worker provides the background refresh job that keeps the
// weather cache warm for every itinerary location.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the weather refresh job.
type RefreshConfig struct {
	// Interval is how often a full refresh cycle runs. Kept inside the
	// cache TTL so readers never see an expired entry.
	// Default: 25 minutes
	Interval time.Duration

	// Concurrency is the number of locations refreshed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the refresh of one location, retries included.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxAttempts is the number of tries per location before giving up.
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	// Default: 5 seconds
	MaxBackoff time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:       25 * time.Minute,
		Concurrency:    3,
		Timeout:        30 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}
