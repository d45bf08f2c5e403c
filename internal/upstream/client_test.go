package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap/zaptest"

	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/retrier"
)

func testSettings(t *testing.T) Settings {
	t.Helper()
	return Settings{
		Provider:  "test",
		UserAgent: "pace-test",
		Timeout:   time.Second,
		Breaker: gobreaker.Settings{
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
			Timeout:     time.Minute,
		},
		Retry:  retrier.Settings{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Logger: zaptest.NewLogger(t),
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "pace-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"week": 4}`))
	}))
	defer srv.Close()

	c, err := New(testSettings(t))
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Week int `json:"week"`
	}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Week != 4 || hits.Load() != 3 {
		t.Errorf("week = %d after %d hits", out.Week, hits.Load())
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := New(testSettings(t))
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
	var upErr *models.UpstreamError
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %#v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestGetJSONDecodeFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c, _ := New(testSettings(t))
	var out map[string]any
	if err := c.GetJSON(context.Background(), srv.URL, &out); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("decode failures should not be retried, hits = %d", hits.Load())
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := testSettings(t)
	s.Retry.MaxAttempts = 1
	c, _ := New(s)

	for i := 0; i < 2; i++ {
		_, _ = c.Get(context.Background(), srv.URL)
	}
	before := hits.Load()
	_, err := c.Get(context.Background(), srv.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("breaker rejection should still be upstream unavailable")
	}
	if hits.Load() != before {
		t.Errorf("open breaker let a request through")
	}
}
