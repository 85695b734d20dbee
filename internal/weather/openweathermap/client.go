// Package openweathermap implements the weather.Provider interface
// against the OpenWeatherMap current weather API.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/provider/resilience"
	"github.com/0x1049678II/TravelBlog-WeatherAPI/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("openweathermap"))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// CurrentWeather fetches current conditions for a coordinate pair. The
// API reports temperatures in Kelvin; they are converted to Celsius here
// so nothing downstream ever sees a Kelvin value. Failures are wrapped in
// the weather package's sentinel errors.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*weather.Record, error) {
	endpoint := fmt.Sprintf("%s/weather?lat=%.4f&lon=%.4f&appid=%s",
		c.baseURL, lat, lon, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", weather.ErrConnection, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError(resp)
	}

	var owmResp currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", weather.ErrParsing, err)
	}

	return toRecord(&owmResp)
}

// mapTransportError classifies an error from the HTTP layer. The circuit
// breaker sentinel is kept in the chain so callers can still detect an
// open breaker behind the connection error.
func mapTransportError(err error) error {
	// url.Error messages carry the request URL, API key included. Keep
	// only the underlying cause.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", weather.ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", weather.ErrTimeout, err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Errorf("%w: %w", weather.ErrConnection, err)
	default:
		return fmt.Errorf("%w: %v", weather.ErrConnection, err)
	}
}

// mapStatusError classifies a non-200 response. 429 means our key ran
// out of quota, 401 a bad key, 404 coordinates the API has no data for.
// Anything else, including 5xx, counts as a connection-level failure.
func mapStatusError(resp *http.Response) error {
	var sentinel error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		sentinel = weather.ErrRateLimited
	case http.StatusUnauthorized:
		sentinel = weather.ErrInvalidAPIKey
	case http.StatusNotFound:
		sentinel = weather.ErrUnknownLocation
	default:
		sentinel = weather.ErrConnection
	}

	msg := readErrorMessage(resp)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%w: upstream status %d: %s", sentinel, resp.StatusCode, msg)
}

// readErrorMessage extracts the message field from an OpenWeatherMap
// error body, best effort.
func readErrorMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Message)
}

// toRecord converts an OpenWeatherMap response to the domain record,
// rejecting payloads that lack the required groups.
func toRecord(resp *currentWeatherResponse) (*weather.Record, error) {
	if resp.Main == nil || resp.Wind == nil || resp.Clouds == nil || len(resp.Weather) == 0 || resp.Dt == 0 {
		return nil, fmt.Errorf("%w: response missing required fields", weather.ErrParsing)
	}

	cond := resp.Weather[0]

	return &weather.Record{
		Temp:      kelvinToCelsius(resp.Main.Temp),
		FeelsLike: kelvinToCelsius(resp.Main.FeelsLike),
		TempMin:   kelvinToCelsius(resp.Main.TempMin),
		TempMax:   kelvinToCelsius(resp.Main.TempMax),

		Pressure: resp.Main.Pressure,
		Humidity: resp.Main.Humidity,

		WindSpeed: resp.Wind.Speed,
		WindDeg:   resp.Wind.Deg,

		ConditionID:          cond.ID,
		ConditionMain:        cond.Main,
		ConditionDescription: capitalize(cond.Description),
		IconID:               cond.Icon,

		CloudCover: resp.Clouds.All,
		Visibility: resp.Visibility,
		Rain1h:     resp.Rain.OneH,
		Snow1h:     resp.Snow.OneH,

		ObservedAt: time.Unix(resp.Dt, 0).UTC(),
		Sunrise:    time.Unix(resp.Sys.Sunrise, 0).UTC(),
		Sunset:     time.Unix(resp.Sys.Sunset, 0).UTC(),

		TimezoneOffset: resp.Timezone,
	}, nil
}

// kelvinToCelsius converts and rounds to one decimal place.
func kelvinToCelsius(k float64) float64 {
	return math.Round((k-273.15)*10) / 10
}

// capitalize uppercases the first rune of a condition description.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// currentWeatherResponse mirrors the OpenWeatherMap current weather
// payload. The required groups are pointers so a missing group can be
// told apart from zero values.
type currentWeatherResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       *struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds *struct {
		All int `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneH float64 `json:"1h"`
	} `json:"rain"`
	Snow struct {
		OneH float64 `json:"1h"`
	} `json:"snow"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
}
