package models

// LocationWeather is the API view of current conditions at one location.
// Temperatures are Celsius, wind speed is metres per second, and the
// local fields are rendered in the location's own UTC offset.
type LocationWeather struct {
	Location string `json:"location"`
	Slug     string `json:"slug"`

	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feelsLike"`
	TempMin   float64 `json:"tempMin"`
	TempMax   float64 `json:"tempMax"`

	Pressure int `json:"pressure"`
	Humidity int `json:"humidity"`

	WindSpeed     float64 `json:"windSpeed"`
	WindDeg       int     `json:"windDeg"`
	WindDirection string  `json:"windDirection"`

	Condition   string `json:"condition"`
	Description string `json:"description"`
	IconURL     string `json:"iconUrl"`

	Clouds     int     `json:"clouds"`
	Visibility int     `json:"visibility,omitempty"`
	Rain1h     float64 `json:"rain1h,omitempty"`
	Snow1h     float64 `json:"snow1h,omitempty"`

	ObservedAt Timestamp `json:"observedAt"`
	LocalTime  Timestamp `json:"localTime"`
	Sunrise    Timestamp `json:"sunrise"`
	Sunset     Timestamp `json:"sunset"`
	IsDaytime  bool      `json:"isDaytime"`

	TimezoneOffsetSeconds int `json:"timezoneOffsetSeconds"`
}

// LocationError explains why one location could not be served.
type LocationError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// LocationReport carries either weather or an error for one location.
type LocationReport struct {
	Location string           `json:"location"`
	Slug     string           `json:"slug"`
	Weather  *LocationWeather `json:"weather,omitempty"`
	Error    *LocationError   `json:"error,omitempty"`
}

// WeatherReport is the aggregate response for the full itinerary.
type WeatherReport struct {
	Count       int              `json:"count"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	GeneratedAt Timestamp        `json:"generatedAt"`
	Locations   []LocationReport `json:"locations"`
}
