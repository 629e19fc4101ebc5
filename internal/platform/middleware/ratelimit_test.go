package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newLimitedHandler(cfg RateLimitConfig) echo.HandlerFunc {
	return RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func doRequest(e *echo.Echo, h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	// Send 5 requests (within burst size), all should pass
	for i := 0; i < 5; i++ {
		rec, err := doRequest(e, handler, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if _, err := doRequest(e, handler, "10.0.0.2"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := doRequest(e, handler, "10.0.0.2")
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if _, err := doRequest(e, handler, "10.0.0.3"); err != nil {
		t.Fatal(err)
	}
	if _, err := doRequest(e, handler, "10.0.0.3"); err == nil {
		t.Fatal("expected second request from same client to be limited")
	}
	if _, err := doRequest(e, handler, "10.0.0.4"); err != nil {
		t.Errorf("expected other client unaffected, got %v", err)
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	base := time.Now()
	s.now = func() time.Time { return base }
	s.reserve("a")

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	s.reserve("b")

	if _, ok := s.visitors["a"]; ok {
		t.Error("expected idle visitor evicted")
	}
	if _, ok := s.visitors["b"]; !ok {
		t.Error("expected active visitor kept")
	}
}
