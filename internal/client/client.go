package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrRetriesExhausted is returned when a call keeps failing transiently
// past the configured attempt cap.
var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError reports a non-transient HTTP failure.
type StatusError struct {
	URL    string
	Status int
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %d %s (%s)", e.Status, http.StatusText(e.Status), e.URL)
}

// Config holds request client configuration
type Config struct {
	RequestsPerSecond float64       `yaml:"requestsPerSecond"` // global outbound rate ceiling (default: 4)
	Backoff           time.Duration `yaml:"backoff"`           // base retry delay, scaled by consecutive failures (default: 1s)
	MaxAttempts       int           `yaml:"maxAttempts"`       // transient retry cap per call (default: 8)
	Timeout           time.Duration `yaml:"timeout"`           // per-request timeout (default: 30s)
	Endpoints         []string      `yaml:"endpoints"`         // ranked equivalent base URLs, used by Call
}

// DefaultConfig returns default request client configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 4,
		Backoff:           time.Second,
		MaxAttempts:       8,
		Timeout:           30 * time.Second,
	}
}

// Client issues outbound HTTP calls under a global rate ceiling with retry,
// linear backoff and endpoint failover. All calls are sequential by design;
// the failure counter and failover index are run-scoped state.
type Client struct {
	config   Config
	http     *http.Client
	limiter  *Limiter
	logger   *zap.Logger
	sleep    func(time.Duration)
	failures int // consecutive transient failures, reset on any success
	endpoint int // current index into config.Endpoints
}

// New creates a new request client
func New(config Config, logger *zap.Logger) *Client {
	return &Client{
		config:  config,
		limiter: NewLimiter(config.RequestsPerSecond),
		logger:  logger.Named("client"),
		sleep:   time.Sleep,
		http: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Get fetches a URL and returns the response body
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, func(base string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// Call posts a JSON-RPC style body to the current failover endpoint. A
// transient failure advances to the next endpoint in the ranked list before
// retrying; the selection resets to the primary on the next success.
func (c *Client) Call(ctx context.Context, body interface{}) ([]byte, error) {
	if len(c.config.Endpoints) == 0 {
		return nil, errors.New("no endpoints configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request body")
	}
	return c.do(ctx, func(base string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// do runs the retry loop shared by Get and Call
func (c *Client) do(ctx context.Context, build func(base string) (*http.Request, error)) ([]byte, error) {
	for {
		base := ""
		if len(c.config.Endpoints) > 0 {
			base = c.config.Endpoints[c.endpoint]
		}
		req, err := build(base)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}

		c.limiter.Wait()
		body, err := c.attempt(req)
		if err == nil {
			c.failures = 0
			c.endpoint = 0
			return body, nil
		}

		if !transient(err) {
			c.logger.Error("request failed",
				zap.String("url", req.URL.String()),
				zap.Error(err))
			return nil, err
		}

		c.failures++
		if c.failures >= c.config.MaxAttempts {
			c.failures = 0
			c.logger.Error("request retries exhausted",
				zap.String("url", req.URL.String()),
				zap.Int("attempts", c.config.MaxAttempts))
			return nil, errors.Wrap(ErrRetriesExhausted, req.URL.String())
		}
		if len(c.config.Endpoints) > 1 {
			c.endpoint = (c.endpoint + 1) % len(c.config.Endpoints)
		}

		delay := time.Duration(c.failures) * c.config.Backoff
		c.logger.Warn("transient request failure, backing off",
			zap.String("url", req.URL.String()),
			zap.Int("failures", c.failures),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		c.sleep(delay)
	}
}

// attempt performs a single HTTP exchange
func (c *Client) attempt(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: req.URL.String(), Status: resp.StatusCode}
	}
	return body, nil
}

// transient reports whether an error is worth retrying: request timeout,
// rate limiting, or a network-level timeout.
func transient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusRequestTimeout ||
			statusErr.Status == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
