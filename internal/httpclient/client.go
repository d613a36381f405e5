package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// maxBodyBytes caps provider responses read into memory.
const maxBodyBytes = 4 << 20

// Config holds configuration for a provider client and its circuit breaker.
type Config struct {
	// Name identifies the provider (used in metrics and logs).
	Name string

	Timeout   time.Duration
	Transport http.RoundTripper

	// MaxRequests is the maximum number of requests allowed in the half-open state.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state for clearing internal counts.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before moving to half-open.
	OpenTimeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns sensible defaults for a provider client.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		Timeout:      30 * time.Second,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		OpenTimeout:  30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_provider_breaker_state",
			Help: "Current state of the provider circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_http_requests_total",
			Help: "Outbound requests to payment provider APIs",
		},
		[]string{"provider", "method", "code"},
	)
)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ErrCircuitOpen is returned when the breaker rejects a request.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response (http=%d): %w", r.StatusCode, err)
	}
	return nil
}

// Client talks to a single provider API through a circuit breaker. It never
// retries; a failed call is reported to the caller as-is.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Response]
	logger  *zap.SugaredLogger
	name    string
}

func New(cfg Config, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	def := DefaultConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnw("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: gobreaker.NewCircuitBreaker[*Response](settings),
		logger:  logger,
		name:    cfg.Name,
	}
}

// Do executes req through the breaker and reads the whole body. 5xx
// responses count as breaker failures and come back as errors.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	req = req.WithContext(ctx)
	resp, err := c.breaker.Execute(func() (*Response, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		upstreamRequests.WithLabelValues(c.name, req.Method, fmt.Sprint(res.StatusCode)).Inc()

		if res.StatusCode >= 500 {
			return nil, fmt.Errorf("server error %d: %s", res.StatusCode, string(body))
		}
		return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, nil
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			c.logger.Warnw("circuit open, request rejected", "provider", c.name, "url", req.URL.Redacted())
		}
		return nil, err
	}
	c.logger.Debugw("provider call", "provider", c.name, "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode)
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, rawURL string, body io.Reader, contentType string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return c.Do(ctx, req)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return c.send(ctx, http.MethodGet, rawURL, http.NoBody, "", header)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return c.send(ctx, http.MethodDelete, rawURL, http.NoBody, "", header)
}

// PostJSON marshals payload, or sends it verbatim when it is already []byte.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, header http.Header) (*Response, error) {
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = b
	}
	return c.send(ctx, http.MethodPost, rawURL, bytes.NewReader(body), "application/json", header)
}

// PostForm sends form as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*Response, error) {
	return c.send(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", header)
}

// State returns the current state of the circuit breaker.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
