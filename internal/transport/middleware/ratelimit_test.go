package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimited(t *testing.T, perMinute int, exempt ...string) (http.Handler, *RateLimiter, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(clock, time.Minute)
	t.Cleanup(rl.Stop)

	h := rl.Limit(perMinute, exempt...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return h, rl, clock
}

func hit(h http.Handler, method, path, remote string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenBlock(t *testing.T) {
	t.Parallel()
	h, _, _ := newLimited(t, 5)

	for i := range 5 {
		rec := hit(h, http.MethodPost, "/manuscripts", "10.0.0.1:4000")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := hit(h, http.MethodPost, "/manuscripts", "10.0.0.1:4000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"rate_limited"`)
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	t.Parallel()
	h, _, clock := newLimited(t, 60)

	for range 60 {
		hit(h, http.MethodGet, "/manuscripts/x", "10.0.0.2:1")
	}
	require.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/manuscripts/x", "10.0.0.2:1").Code)

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/manuscripts/x", "10.0.0.2:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/manuscripts/x", "10.0.0.2:1").Code)
}

func TestRateLimiter_KeysByHost(t *testing.T) {
	t.Parallel()
	h, _, _ := newLimited(t, 1)

	assert.Equal(t, http.StatusOK, hit(h, http.MethodPost, "/tasks/1", "10.0.0.3:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodPost, "/tasks/1", "10.0.0.3:2000").Code, "same host, other port")
	assert.Equal(t, http.StatusOK, hit(h, http.MethodPost, "/tasks/1", "10.0.0.4:1000").Code, "other host")
}

func TestRateLimiter_ExemptPaths(t *testing.T) {
	t.Parallel()
	h, _, _ := newLimited(t, 1, "/live", "/ready")

	for range 3 {
		assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/live", "10.0.0.5:1").Code)
	}
	assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/me", "10.0.0.5:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/me", "10.0.0.5:1").Code)
}

func TestRateLimiter_NonPositiveLimitDisables(t *testing.T) {
	t.Parallel()
	h, rl, _ := newLimited(t, 0)

	for range 3 {
		assert.Equal(t, http.StatusOK, hit(h, http.MethodGet, "/me", "10.0.0.6:1").Code)
	}
	assert.Empty(t, rl.buckets)
}

func TestRateLimiter_SweepDropsIdleBuckets(t *testing.T) {
	t.Parallel()
	h, rl, clock := newLimited(t, 10)

	hit(h, http.MethodGet, "/me", "10.0.0.7:1")
	clock.Advance(5 * time.Minute)
	hit(h, http.MethodGet, "/me", "10.0.0.8:1")

	assert.Equal(t, 0, rl.sweep(clock.Now()))
	assert.Equal(t, 1, rl.sweep(clock.Now().Add(6*time.Minute)), "only the first client is idle past the TTL")
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, rl, _ := newLimited(t, 1)

	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
