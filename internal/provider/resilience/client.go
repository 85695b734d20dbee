package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without dialing when the circuit breaker
// rejects the request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming and health
	// reporting.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, tracks this client's health under Name.
	Registry *Registry
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        10 * time.Second,
		CircuitBreaker: &cbConfig,
	}
}

// Client is an HTTP client guarded by a circuit breaker. It performs no
// retries of its own; retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	cbConfig := cfg.CircuitBreaker
	if cbConfig == nil {
		def := DefaultCircuitBreakerConfig(cfg.Name)
		cbConfig = &def
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: NewCircuitBreaker[*http.Response](*cbConfig), //nolint:bodyclose // type param, not response
		config:  cfg,
	}

	cfg.Registry.Register(cfg.Name, c)

	return c
}

// Do executes the request through the circuit breaker. A 5xx response
// counts as a breaker failure but is still returned to the caller so the
// status can be mapped; once the breaker has tripped, ErrCircuitOpen
// comes back without dialing.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}

		if r.StatusCode >= 500 {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.config.Registry.RecordFailure(c.config.Name, ErrCircuitOpen)
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.config.Name)
		}

		c.config.Registry.RecordFailure(c.config.Name, recordableError(err))

		// The breaker has already counted the 5xx; hand the response
		// back for status mapping.
		var srvErr *ServerError
		if errors.As(err, &srvErr) && resp != nil {
			return resp, nil
		}
		return nil, err
	}

	c.config.Registry.RecordSuccess(c.config.Name)
	return resp, nil
}

// recordableError strips the request URL, whose query string may carry
// credentials, from transport errors before they reach health reporting.
func recordableError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// Name returns the client's provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
