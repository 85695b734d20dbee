package models

// LocationInfo describes one stop on the itinerary.
type LocationInfo struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Coordinates Point  `json:"coordinates"`
}

// LocationList is the response for the locations listing.
type LocationList struct {
	Count     int            `json:"count"`
	Locations []LocationInfo `json:"locations"`
}

// ServiceMetadata is the response for the ops metadata endpoint.
type ServiceMetadata struct {
	Version   string         `json:"version"`
	BuildTime string         `json:"buildTime"`
	Provider  string         `json:"provider"`
	Itinerary []LocationInfo `json:"itinerary"`
	Time      Timestamp      `json:"time"`
}
