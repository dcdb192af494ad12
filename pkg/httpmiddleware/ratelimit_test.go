package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(cfg RateLimitConfig) http.Handler {
	return RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitAllowsUpToMax(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 3, Window: time.Minute})

	for i := range 3 {
		rec := hit(h, "192.0.2.1:1000", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitRejectsOverMax(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, "192.0.2.2:1000", nil).Code)
	}

	rec := hit(h, "192.0.2.2:1000", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(http.StatusTooManyRequests), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.3:1000", nil).Code)
	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.4:1000", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.3:2000", nil).Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	h := limitedHandler(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Terminal-ID")
		},
	})

	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.5:1", map[string]string{"X-Terminal-ID": "till-1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.6:2", map[string]string{"X-Terminal-ID": "till-1"}).Code)
	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.7:3", map[string]string{"X-Terminal-ID": "till-2"}).Code)
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})
	fwd := map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1000", fwd).Code)
	// Different RemoteAddr, same forwarded client: shares the budget.
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.2:1000", fwd).Code)
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.1")
	assert.Equal(t, "203.0.113.1", clientIP(req))
}
