// Package tmdb is the catalog client backing the recommendation engine. It
// talks to a TMDB compatible REST API with retries and a circuit breaker.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/metrics"
)

const DefaultBaseURL = "https://api.themoviedb.org/3"

// ClientConfig holds configurable settings for the catalog client.
type ClientConfig struct {
	APIKey         string
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker[[]byte]
	Log        *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker[[]byte]) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 250 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BreakerSettings mirrors the CB_* environment knobs.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// NewBreaker builds the circuit breaker guarding upstream calls. Client
// errors such as 404 count as successes so a missing title never opens it.
func NewBreaker(name string, s BreakerSettings, log *zap.Logger) *gobreaker.CircuitBreaker[[]byte] {
	if log == nil {
		log = zap.NewNop()
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: status %d body=%q", e.Code, e.Body)
}

// ErrNotFound is matched by errors.Is for 404 responses.
var ErrNotFound = errors.New("tmdb: not found")

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}

func getJSON[T any](ctx context.Context, c *Client, path string, q url.Values) (*T, error) {
	if q == nil {
		q = url.Values{}
	}
	if c.Config.APIKey != "" {
		q.Set("api_key", c.Config.APIKey)
	}
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var (
		body []byte
		err  error
	)
	if c.CB == nil {
		body, err = c.getWithRetry(ctx, u)
	} else {
		body, err = c.CB.Execute(func() ([]byte, error) {
			return c.getWithRetry(ctx, u)
		})
	}
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tmdb: decode error: %w body=%q", err, string(body[:min(len(body), 200)]))
	}
	return &out, nil
}

func (c *Client) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying request", zap.String("path", redact(u)), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		body, err := c.get(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if isClientError(err) || ctx.Err() != nil {
			break
		}
		c.Log.Warn("request failed", zap.String("path", redact(u)), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}
	return b, nil
}

// redact strips the query string so the api key never reaches the logs.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
