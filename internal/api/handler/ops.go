package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/models"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/response"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	service   *weather.Service
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, service *weather.Service, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		service:   service,
		providers: providers,
	}
}

// HealthCheck handles GET /internal/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now().UTC()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /internal/ops/ready - readiness check.
// Not ready while no provider client is registered or every provider
// circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now().UTC()),
	}

	all := h.providers.GetAllHealth()
	if len(all) == 0 {
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"reason": "no providers registered"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	open := 0
	for _, ph := range all {
		if ph.IsUnhealthy() {
			open++
		}
	}
	if open == len(all) {
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"reason": "all provider circuits open"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /internal/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now().UTC())
	overall := models.HealthStatusOK

	all := h.providers.GetAllHealth()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	providers := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := providerStatus(ph)
		if ps.Status != models.HealthStatusOK {
			overall = models.HealthStatusDegraded
		}
		providers = append(providers, ps)
	}

	stats := h.service.CacheStats()
	cacheDetail := fmt.Sprintf("%d entries, %d fresh", stats.Entries, stats.FreshEntries)

	status := models.SystemStatus{
		Status: overall,
		Time:   now,
		Subsystems: []models.SubsystemStatus{
			{Name: "weather-cache", Status: models.HealthStatusOK, Detail: &cacheDetail},
		},
		Providers: providers,
	}
	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	status := models.HealthStatusOK
	switch {
	case ph.IsUnhealthy():
		status = models.HealthStatusFail
	case ph.IsDegraded():
		status = models.HealthStatusDegraded
	}

	ps := models.ProviderStatus{
		Provider:     ph.Name,
		Status:       status,
		CircuitState: ph.CircuitState.String(),
	}
	if ph.LastSuccessAt != nil {
		ts := models.Timestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.Timestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

// ListProviders handles GET /internal/ops/providers - circuit state per
// upstream provider.
func (h *OpsHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	all := h.providers.GetAllHealth()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	providers := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		providers = append(providers, providerStatus(ph))
	}

	response.JSON(w, r, http.StatusOK, models.ProviderList{
		Count:     len(providers),
		Providers: providers,
		Time:      models.Timestamp(time.Now().UTC()),
	})
}

// GetMetadata handles GET /internal/ops/metadata - build info and the
// itinerary this deployment serves.
func (h *OpsHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	locs := h.service.Locations()
	itinerary := make([]models.LocationInfo, 0, len(locs))
	for _, loc := range locs {
		itinerary = append(itinerary, models.LocationInfo{
			Name:        loc.Name,
			Slug:        loc.Slug(),
			Coordinates: models.Point{Lat: loc.Lat, Lon: loc.Lon},
		})
	}

	response.JSON(w, r, http.StatusOK, models.ServiceMetadata{
		Version:   h.version,
		BuildTime: h.buildTime,
		Provider:  h.service.ProviderName(),
		Itinerary: itinerary,
		Time:      models.Timestamp(time.Now().UTC()),
	})
}

// CacheStatus handles GET /internal/ops/cache - cache occupancy and hit rates.
func (h *OpsHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.service.CacheStats()

	response.JSON(w, r, http.StatusOK, models.CacheStatus{
		Entries:      stats.Entries,
		FreshEntries: stats.FreshEntries,
		Hits:         stats.Hits,
		Misses:       stats.Misses,
		StaleServes:  stats.StaleServes,
		Evictions:    stats.Evictions,
		TTLSeconds:   int(stats.TTL.Seconds()),
		Time:         models.Timestamp(time.Now().UTC()),
	})
}

// InvalidateCache handles POST /internal/ops/cache/invalidate. An empty
// body (or empty location) clears the whole cache; naming a location
// drops just that entry.
func (h *OpsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req models.InvalidateCacheRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	}

	if req.Location == "" {
		n := h.service.InvalidateAll()
		response.JSON(w, r, http.StatusOK, models.InvalidateCacheResponse{Invalidated: n})
		return
	}

	removed, err := h.service.InvalidateLocation(req.Location)
	if err != nil {
		response.NotFound(w, r, fmt.Sprintf("unknown location: %q", req.Location))
		return
	}
	n := 0
	if removed {
		n = 1
	}
	response.JSON(w, r, http.StatusOK, models.InvalidateCacheResponse{
		Invalidated: n,
		Location:    req.Location,
	})
}
