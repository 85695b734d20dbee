// Package weather provides the core weather domain: current-conditions
// records, the TTL cache with request coalescing, and the service that
// fans fetches out across the itinerary.
package weather

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors classifying why a fetch failed. Provider clients wrap
// these with detail; callers branch with errors.Is.
var (
	// ErrConnection indicates the upstream API could not be reached or
	// answered with an unexpected status.
	ErrConnection = errors.New("weather provider unreachable")

	// ErrRateLimited indicates the upstream API rejected the call for
	// exceeding its quota.
	ErrRateLimited = errors.New("weather provider rate limit exceeded")

	// ErrParsing indicates the upstream response did not have the
	// expected shape.
	ErrParsing = errors.New("malformed weather provider response")

	// ErrUnknownLocation indicates a name that is not on the itinerary,
	// or coordinates the upstream API does not recognize.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrTimeout indicates a fetch ran past its deadline.
	ErrTimeout = errors.New("weather fetch timed out")

	// ErrInvalidAPIKey indicates the upstream API rejected our key.
	ErrInvalidAPIKey = errors.New("weather provider rejected API key")
)

// Kind returns a stable taxonomy name for err, used in logs and in the
// per-location error markers of aggregate responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownLocation):
		return "unknown_location"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrParsing):
		return "parsing_error"
	case errors.Is(err, ErrInvalidAPIKey):
		return "invalid_api_key"
	case errors.Is(err, ErrConnection):
		return "connection_error"
	default:
		return "internal_error"
	}
}

// Record is the current conditions at one location, normalized from the
// provider response. Temperatures are Celsius, wind speed m/s, pressure
// hPa. Times are UTC instants; TimezoneOffset carries the location's
// offset so local clock times can be derived.
type Record struct {
	Location string

	Temp      float64
	FeelsLike float64
	TempMin   float64
	TempMax   float64

	Pressure int
	Humidity int

	WindSpeed float64
	WindDeg   int

	ConditionID          int
	ConditionMain        string
	ConditionDescription string
	IconID               string

	CloudCover int
	Visibility int
	Rain1h     float64
	Snow1h     float64

	ObservedAt time.Time
	Sunrise    time.Time
	Sunset     time.Time

	// TimezoneOffset is the location's UTC offset in seconds.
	TimezoneOffset int
}

// zone returns the location's fixed UTC offset as a time.Location.
func (r *Record) zone() *time.Location {
	return time.FixedZone("", r.TimezoneOffset)
}

// LocalTime returns the observation time on the location's clock.
func (r *Record) LocalTime() time.Time {
	return r.ObservedAt.In(r.zone())
}

// LocalSunrise returns sunrise on the location's clock.
func (r *Record) LocalSunrise() time.Time {
	return r.Sunrise.In(r.zone())
}

// LocalSunset returns sunset on the location's clock.
func (r *Record) LocalSunset() time.Time {
	return r.Sunset.In(r.zone())
}

// IsDaytime reports whether the observation falls between the location's
// sunrise and sunset.
func (r *Record) IsDaytime() bool {
	return !r.ObservedAt.Before(r.Sunrise) && !r.ObservedAt.After(r.Sunset)
}

// compass holds the eight points clockwise from north. Each sector spans
// 45 degrees centred on its point, so north covers 337.5 through 22.5.
var compass = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// WindDirection returns the eight-point compass direction for the wind
// bearing.
func (r *Record) WindDirection() string {
	deg := r.WindDeg % 360
	if deg < 0 {
		deg += 360
	}
	sector := int((float64(deg)+22.5)/45.0) % 8
	return compass[sector]
}

// IconURL returns the provider's 2x condition icon for the record.
func (r *Record) IconURL() string {
	if r.IconID == "" {
		return ""
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", r.IconID)
}
