package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// ProviderList is the response for the provider listing.
type ProviderList struct {
	Count     int              `json:"count"`
	Providers []ProviderStatus `json:"providers"`
	Time      Timestamp        `json:"time"`
}

// CacheStatus reports cache occupancy and hit rates.
type CacheStatus struct {
	Entries      int       `json:"entries"`
	FreshEntries int       `json:"freshEntries"`
	Hits         int64     `json:"hits"`
	Misses       int64     `json:"misses"`
	StaleServes  int64     `json:"staleServes"`
	Evictions    int64     `json:"evictions"`
	TTLSeconds   int       `json:"ttlSeconds"`
	Time         Timestamp `json:"time"`
}

// InvalidateCacheRequest asks for one location, or everything when empty.
type InvalidateCacheRequest struct {
	Location string `json:"location,omitempty"`
}

// InvalidateCacheResponse reports how many entries were dropped.
type InvalidateCacheResponse struct {
	Invalidated int    `json:"invalidated"`
	Location    string `json:"location,omitempty"`
}
