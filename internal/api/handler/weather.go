// Package handler provides HTTP handlers for the travel blog weather API.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/models"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/response"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
)

// WeatherHandler serves current conditions for itinerary locations.
type WeatherHandler struct {
	service *weather.Service
	logger  zerolog.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(service *weather.Service, logger zerolog.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger,
	}
}

// GetAll handles GET /api/weather/all - current conditions for every stop
// on the itinerary. Locations that fail carry an error entry instead of
// failing the whole response.
func (h *WeatherHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	outcomes := h.service.FetchAll(r.Context())

	report := models.WeatherReport{
		Count:       len(outcomes),
		GeneratedAt: models.Timestamp(time.Now().UTC()),
		Locations:   make([]models.LocationReport, 0, len(outcomes)),
	}

	for _, out := range outcomes {
		entry := models.LocationReport{
			Location: out.Location,
			Slug:     locations.Slug(out.Location),
		}
		if out.OK() {
			report.Succeeded++
			entry.Weather = toLocationWeather(out.Record)
		} else {
			report.Failed++
			entry.Error = &models.LocationError{
				Kind:    weather.Kind(out.Err),
				Message: out.Err.Error(),
			}
		}
		report.Locations = append(report.Locations, entry)
	}

	response.JSON(w, r, http.StatusOK, report)
}

// GetLocation handles GET /api/weather/{location} - current conditions
// for a single stop. The name matches case-insensitively and accepts
// slugs ("corfe-castle") as well as display names.
func (h *WeatherHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "location")

	out := h.service.FetchOne(r.Context(), name)
	if !out.OK() {
		h.writeWeatherError(w, r, name, out.Err)
		return
	}

	response.JSON(w, r, http.StatusOK, toLocationWeather(out.Record))
}

// writeWeatherError maps the weather error taxonomy onto HTTP statuses.
func (h *WeatherHandler) writeWeatherError(w http.ResponseWriter, r *http.Request, name string, err error) {
	h.logger.Warn().
		Str("location", name).
		Str("kind", weather.Kind(err)).
		Err(err).
		Msg("weather request failed")

	switch {
	case errors.Is(err, weather.ErrUnknownLocation):
		response.NotFound(w, r, fmt.Sprintf("unknown location: %q", name))
	case errors.Is(err, weather.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		response.TooManyRequests(w, r, "weather provider rate limit reached")
	case errors.Is(err, weather.ErrTimeout):
		response.GatewayTimeout(w, r, "weather provider timed out")
	case errors.Is(err, weather.ErrParsing):
		response.BadGateway(w, r, "weather provider returned malformed data")
	case errors.Is(err, weather.ErrConnection):
		response.ServiceUnavailable(w, r, "weather provider unreachable")
	case errors.Is(err, weather.ErrInvalidAPIKey):
		response.InternalError(w, r, "weather provider credentials rejected")
	default:
		response.InternalError(w, r, "unexpected error")
	}
}

// toLocationWeather converts a weather record into its API view,
// rendering sunrise, sunset, and local time in the location's UTC offset.
func toLocationWeather(rec *weather.Record) *models.LocationWeather {
	return &models.LocationWeather{
		Location: rec.Location,
		Slug:     locations.Slug(rec.Location),

		Temp:      rec.Temp,
		FeelsLike: rec.FeelsLike,
		TempMin:   rec.TempMin,
		TempMax:   rec.TempMax,

		Pressure: rec.Pressure,
		Humidity: rec.Humidity,

		WindSpeed:     rec.WindSpeed,
		WindDeg:       rec.WindDeg,
		WindDirection: rec.WindDirection(),

		Condition:   rec.ConditionMain,
		Description: rec.ConditionDescription,
		IconURL:     rec.IconURL(),

		Clouds:     rec.CloudCover,
		Visibility: rec.Visibility,
		Rain1h:     rec.Rain1h,
		Snow1h:     rec.Snow1h,

		ObservedAt: models.Timestamp(rec.ObservedAt.UTC()),
		LocalTime:  models.Timestamp(rec.LocalTime()),
		Sunrise:    models.Timestamp(rec.LocalSunrise()),
		Sunset:     models.Timestamp(rec.LocalSunset()),
		IsDaytime:  rec.IsDaytime(),

		TimezoneOffsetSeconds: rec.TimezoneOffset,
	}
}
