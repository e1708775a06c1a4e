// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tfgs", "/tfgs"},
		{"/tfgs/0b7e3f5c-1a2b-4c3d-8e9f-001122334455", "/tfgs/{id}"},
		{"/tfgs/page/3", "/tfgs/page/{id}"},
		{"/users/login/", "/users/login"},
		{"/tfgs/not-a-uuid-but-36-characters-long!", "/tfgs/not-a-uuid-but-36-characters-long!"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeEndpoint(tt.path), tt.path)
	}
}

func TestKeyByIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "ratelimit:ip:10.0.0.1", KeyByIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "ratelimit:ip:10.0.0.2", KeyByIP(req))

	req.Header.Set("X-Forwarded-For", "1.1.1.1, 10.0.0.3")
	assert.Equal(t, "ratelimit:ip:10.0.0.3", KeyByIP(req))

	req.URL.Path = "/users/login"
	assert.Equal(t, "ratelimit:ip:10.0.0.3:endpoint:/users/login", KeyByIPAndEndpoint(req))
}

func TestLocalLimiterBlocksAfterBurst(t *testing.T) {
	l := &localLimiter{}
	limit := PerMinute(1, 2)

	for range 2 {
		res, err := l.allow("k", limit)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Allowed)
	}

	res, err := l.allow("k", limit)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	res, err = l.allow("other", limit)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)
}

func TestRateLimiterFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(1, 1)})
	h := rl.Handler(okHandler)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/tfgs", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Limit"))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/tfgs", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, core.CodeRateLimited, errorCode(t, second))
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestSkipPaths(t *testing.T) {
	skip := SkipPaths("/healthz", "/metrics")
	assert.True(t, skip(httptest.NewRequest(http.MethodGet, "/metrics", nil)))
	assert.False(t, skip(httptest.NewRequest(http.MethodGet, "/tfgs", nil)))
}

func TestEvery(t *testing.T) {
	l := Every(10, 0, 0)
	assert.Equal(t, time.Minute, l.Period)
	assert.Equal(t, 10, l.Burst, "burst defaults to rate")

	l = Every(5, 2, time.Hour)
	assert.Equal(t, time.Hour, l.Period)
	assert.Equal(t, 2, l.Burst)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", seen)
}
