package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather/openweathermap"
)

// validPayload returns a current weather response as OpenWeatherMap
// serves it, temperatures in Kelvin.
func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"coord": map[string]float64{"lat": 51.7520, "lon": -1.2577},
		"weather": []map[string]interface{}{
			{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"},
		},
		"main": map[string]interface{}{
			"temp":       291.65,
			"feels_like": 290.95,
			"temp_min":   290.15,
			"temp_max":   293.15,
			"pressure":   1015,
			"humidity":   72,
		},
		"visibility": 10000,
		"wind":       map[string]interface{}{"speed": 4.5, "deg": 220},
		"clouds":     map[string]interface{}{"all": 75},
		"rain":       map[string]interface{}{"1h": 0.3},
		"dt":         int64(1750000000),
		"sys":        map[string]interface{}{"sunrise": int64(1749958200), "sunset": int64(1750017600)},
		"timezone":   3600,
		"name":       "Oxford",
	}
}

func newTestClient(serverURL string) *openweathermap.Client {
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "0123456789abcdef0123456789abcdef",
		BaseURL:    serverURL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
	})
}

func TestClient_CurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "51.7520", r.URL.Query().Get("lat"))
		assert.Equal(t, "-1.2577", r.URL.Query().Get("lon"))
		assert.Equal(t, "0123456789abcdef0123456789abcdef", r.URL.Query().Get("appid"))
		// The API is queried in its native Kelvin; conversion happens
		// client-side.
		assert.False(t, r.URL.Query().Has("units"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(validPayload())
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	rec, err := client.CurrentWeather(context.Background(), 51.7520, -1.2577)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, 18.5, rec.Temp)
	assert.Equal(t, 17.8, rec.FeelsLike)
	assert.Equal(t, 17.0, rec.TempMin)
	assert.Equal(t, 20.0, rec.TempMax)
	assert.Equal(t, 1015, rec.Pressure)
	assert.Equal(t, 72, rec.Humidity)
	assert.Equal(t, 4.5, rec.WindSpeed)
	assert.Equal(t, 220, rec.WindDeg)
	assert.Equal(t, 803, rec.ConditionID)
	assert.Equal(t, "Clouds", rec.ConditionMain)
	assert.Equal(t, "Broken clouds", rec.ConditionDescription)
	assert.Equal(t, "04d", rec.IconID)
	assert.Equal(t, 75, rec.CloudCover)
	assert.Equal(t, 10000, rec.Visibility)
	assert.Equal(t, 0.3, rec.Rain1h)
	assert.Equal(t, int64(1750000000), rec.ObservedAt.Unix())
	assert.Equal(t, int64(1749958200), rec.Sunrise.Unix())
	assert.Equal(t, int64(1750017600), rec.Sunset.Unix())
	assert.Equal(t, 3600, rec.TimezoneOffset)
}

func TestClient_CurrentWeather_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"cod":429,"message":"Your account is temporarily blocked"}`,
			sentinel: weather.ErrRateLimited,
		},
		{
			name:     "invalid api key",
			status:   http.StatusUnauthorized,
			body:     `{"cod":401,"message":"Invalid API key"}`,
			sentinel: weather.ErrInvalidAPIKey,
		},
		{
			name:     "unknown coordinates",
			status:   http.StatusNotFound,
			body:     `{"cod":"404","message":"city not found"}`,
			sentinel: weather.ErrUnknownLocation,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     ``,
			sentinel: weather.ErrConnection,
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     ``,
			sentinel: weather.ErrConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)

			_, err := client.CurrentWeather(context.Background(), 51.7520, -1.2577)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestClient_CurrentWeather_ErrorIncludesUpstreamMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.CurrentWeather(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city not found")
	assert.Contains(t, err.Error(), "404")
}

func TestClient_CurrentWeather_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weather": [`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.CurrentWeather(context.Background(), 51.7520, -1.2577)
	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrParsing)
}

func TestClient_CurrentWeather_MissingRequiredGroups(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(payload map[string]interface{})
	}{
		{"no main block", func(p map[string]interface{}) { delete(p, "main") }},
		{"no wind block", func(p map[string]interface{}) { delete(p, "wind") }},
		{"no clouds block", func(p map[string]interface{}) { delete(p, "clouds") }},
		{"empty weather list", func(p map[string]interface{}) { p["weather"] = []map[string]interface{}{} }},
		{"no observation time", func(p map[string]interface{}) { delete(p, "dt") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(payload)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(payload)
			}))
			defer server.Close()

			client := newTestClient(server.URL)

			_, err := client.CurrentWeather(context.Background(), 51.7520, -1.2577)
			require.Error(t, err)
			assert.ErrorIs(t, err, weather.ErrParsing)
		})
	}
}

func TestClient_CurrentWeather_OptionalFieldsDefaultToZero(t *testing.T) {
	payload := validPayload()
	delete(payload, "rain")
	delete(payload, "snow")
	delete(payload, "visibility")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	rec, err := client.CurrentWeather(context.Background(), 51.7520, -1.2577)
	require.NoError(t, err)

	assert.Zero(t, rec.Rain1h)
	assert.Zero(t, rec.Snow1h)
	assert.Zero(t, rec.Visibility)
}

func TestClient_CurrentWeather_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CurrentWeather(ctx, 51.7520, -1.2577)
	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrTimeout)
}

func TestClient_Name(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey: "0123456789abcdef0123456789abcdef",
	})

	assert.Equal(t, "openweathermap", client.Name())
}
