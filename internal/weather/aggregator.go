package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
)

// Provider defines the upstream source of current conditions.
type Provider interface {
	// CurrentWeather fetches current conditions for a coordinate pair.
	CurrentWeather(ctx context.Context, lat, lon float64) (*Record, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the upstream weather source.
	Provider Provider

	// Registry is the itinerary of known locations.
	Registry *locations.Registry

	// Cache fronts the provider.
	Cache *Cache

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics, when set, records fetch durations and outcomes.
	Metrics *Metrics

	// FetchTimeout bounds one location fetch, including time spent
	// waiting on a fetch already in flight for the same location
	// (default: 10 seconds).
	FetchTimeout time.Duration

	// MaxConcurrent caps fetches running at once during an
	// all-locations fan-out (default: 5).
	MaxConcurrent int
}

// Service resolves itinerary names and serves current weather through the
// cache, fanning out across all locations for aggregate requests.
type Service struct {
	provider      Provider
	registry      *locations.Registry
	cache         *Cache
	logger        zerolog.Logger
	metrics       *Metrics
	fetchTimeout  time.Duration
	maxConcurrent int
}

// Outcome is the per-location result of a fetch. Exactly one of Record
// and Err is set.
type Outcome struct {
	Location string
	Record   *Record
	Err      error
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// NewService creates a weather service.
func NewService(cfg ServiceConfig) *Service {
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 10 * time.Second
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = 5
	}

	return &Service{
		provider:      cfg.Provider,
		registry:      cfg.Registry,
		cache:         cfg.Cache,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		fetchTimeout:  fetchTimeout,
		maxConcurrent: maxConcurrent,
	}
}

// FetchOne returns current weather for a single named location. Unknown
// names fail fast with ErrUnknownLocation and never reach the provider.
func (s *Service) FetchOne(ctx context.Context, name string) Outcome {
	loc, ok := s.registry.Resolve(name)
	if !ok {
		return Outcome{Location: name, Err: fmt.Errorf("%w: %q", ErrUnknownLocation, name)}
	}

	rec, err := s.cached(ctx, loc)
	return Outcome{Location: loc.Name, Record: rec, Err: err}
}

// FetchAll returns one outcome per itinerary location, in itinerary
// order. Locations fetch concurrently up to MaxConcurrent; one location
// failing never cancels or degrades the others.
func (s *Service) FetchAll(ctx context.Context) []Outcome {
	locs := s.registry.All()
	outcomes := make([]Outcome, len(locs))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)

	for i, loc := range locs {
		g.Go(func() error {
			rec, err := s.cached(ctx, loc)
			// Each worker writes only its own slot and reports failure
			// there rather than through the group.
			outcomes[i] = Outcome{Location: loc.Name, Record: rec, Err: err}
			if err != nil {
				s.logger.Warn().
					Str("location", loc.Name).
					Str("kind", Kind(err)).
					Err(err).
					Msg("location fetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Refresh fetches one location unconditionally, replacing its cached
// entry on success. Failures surface instead of falling back to stale
// data so scheduled refreshes can retry.
func (s *Service) Refresh(ctx context.Context, name string) Outcome {
	loc, ok := s.registry.Resolve(name)
	if !ok {
		return Outcome{Location: name, Err: fmt.Errorf("%w: %q", ErrUnknownLocation, name)}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	rec, err := s.cache.Refresh(fetchCtx, loc.Key(), s.fetcher(loc))
	return Outcome{Location: loc.Name, Record: rec, Err: err}
}

func (s *Service) cached(ctx context.Context, loc locations.Location) (*Record, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	return s.cache.GetOrFetch(fetchCtx, loc.Key(), s.fetcher(loc))
}

// fetcher builds the upstream fetch for one location.
func (s *Service) fetcher(loc locations.Location) FetchFunc {
	return func(ctx context.Context) (*Record, error) {
		start := time.Now()
		rec, err := s.provider.CurrentWeather(ctx, loc.Lat, loc.Lon)
		s.metrics.RecordFetch(ctx, loc.Name, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		rec.Location = loc.Name
		return rec, nil
	}
}

// Locations returns the itinerary in order.
func (s *Service) Locations() []locations.Location {
	return s.registry.All()
}

// ProviderName returns the upstream provider's name.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// InvalidateLocation drops the cached entry for one location, reporting
// whether an entry was actually removed.
func (s *Service) InvalidateLocation(name string) (bool, error) {
	loc, ok := s.registry.Resolve(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	return s.cache.Invalidate(loc.Key()), nil
}

// InvalidateAll clears the cache and returns the number of entries
// removed.
func (s *Service) InvalidateAll() int {
	return s.cache.InvalidateAll()
}
