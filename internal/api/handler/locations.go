package handler

import (
	"net/http"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/models"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/api/response"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/locations"
)

// LocationsHandler serves the itinerary listing.
type LocationsHandler struct {
	registry *locations.Registry
}

// NewLocationsHandler creates a new LocationsHandler.
func NewLocationsHandler(registry *locations.Registry) *LocationsHandler {
	return &LocationsHandler{registry: registry}
}

// ListLocations handles GET /api/locations - the stops weather is
// tracked for, in itinerary order.
func (h *LocationsHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	all := h.registry.All()

	list := models.LocationList{
		Count:     len(all),
		Locations: make([]models.LocationInfo, 0, len(all)),
	}
	for _, loc := range all {
		list.Locations = append(list.Locations, models.LocationInfo{
			Name:        loc.Name,
			Slug:        loc.Slug(),
			Coordinates: models.Point{Lat: loc.Lat, Lon: loc.Lon},
		})
	}

	response.JSON(w, r, http.StatusOK, list)
}
