package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fastConfig removes real-time waits so retry behavior can be observed
// through the recorded sleep calls instead of the wall clock.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 100000
	cfg.Backoff = 100 * time.Millisecond
	return cfg
}

func newTestClient(cfg Config) (*Client, *[]time.Duration) {
	c := New(cfg, zap.NewNop())
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }
	c.limiter.sleep = func(time.Duration) {}
	return c, &delays
}

func TestGetRetriesRateLimitThenSucceeds(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, delays := newTestClient(fastConfig())
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	assert.Equal(t, 3, hits, "exactly three attempts")
	require.Len(t, *delays, 2)
	assert.Equal(t, 100*time.Millisecond, (*delays)[0])
	assert.Equal(t, 200*time.Millisecond, (*delays)[1], "backoff grows with consecutive failures")
	assert.Equal(t, 0, c.failures, "failure counter resets on success")
}

func TestGetDoesNotRetryPermanentErrors(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, delays := newTestClient(fastConfig())
	_, err := c.Get(context.Background(), srv.URL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, 1, hits, "permanent failures are abandoned immediately")
	assert.Empty(t, *delays)
}

func TestGetSurfacesExhaustionAfterAttemptCap(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxAttempts = 3
	c, _ := newTestClient(cfg)

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.Equal(t, 3, hits)
}

func TestCallFailsOverAcrossEndpoints(t *testing.T) {
	primaryHits, secondaryHits := 0, 0
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondaryHits++
		w.Write([]byte(`{"result":"ok"}`))
	}))
	defer secondary.Close()

	cfg := fastConfig()
	cfg.Endpoints = []string{primary.URL, secondary.URL}
	c, _ := newTestClient(cfg)

	body, err := c.Call(context.Background(), map[string]string{"method": "ping"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(body))

	assert.Equal(t, 1, primaryHits)
	assert.Equal(t, 1, secondaryHits)
	assert.Equal(t, 0, c.endpoint, "endpoint selection resets to primary on success")
}

func TestCallRequiresEndpoints(t *testing.T) {
	c, _ := newTestClient(fastConfig())
	_, err := c.Call(context.Background(), map[string]string{})
	require.Error(t, err)
}
