package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: X-RateLimit-Limit = %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("err = %v", err)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("headers = %v", rec.Header())
	}
}

func TestRateLimit_SeparateKeys(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, KeyFunc: SessionKey})(okHandler)

	call := func(id string) error {
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(id)
		return h(c)
	}

	if err := call("a"); err != nil {
		t.Fatalf("first a: %v", err)
	}
	if err := call("b"); err != nil {
		t.Fatalf("b shares a's bucket: %v", err)
	}
	if err := call("a"); err == nil {
		t.Error("second a should be limited")
	}
}

func TestRateLimit_Skipper(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		Skipper:           func(c echo.Context) bool { return c.Request().Method == http.MethodGet },
	})(okHandler)

	for i := 0; i < 5; i++ {
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())); err != nil {
			t.Fatalf("skipped request %d limited: %v", i+1, err)
		}
	}
}

func TestTokenBucket_Refills(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := newTokenBucket(2, 1, start)

	if ok, _ := b.take(start); !ok {
		t.Fatal("first take failed")
	}
	ok, retry := b.take(start)
	if ok || retry != 1 {
		t.Fatalf("ok = %v retry = %d", ok, retry)
	}
	if ok, _ := b.take(start.Add(600 * time.Millisecond)); !ok {
		t.Error("bucket did not refill")
	}
}

func TestRateLimiterStore_PrunesIdle(t *testing.T) {
	s := newRateLimiterStore(DefaultRateLimitConfig())
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.bucket("old", now)
	s.bucket("fresh", now.Add(idleBucketAge))

	s.mu.Lock()
	s.prune(now.Add(idleBucketAge + time.Second))
	_, oldKept := s.buckets["old"]
	_, freshKept := s.buckets["fresh"]
	s.mu.Unlock()

	if oldKept || !freshKept {
		t.Errorf("old kept = %v, fresh kept = %v", oldKept, freshKept)
	}
}
