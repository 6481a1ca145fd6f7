package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-platform/internal/config"
)

func limitedServer(cfg config.RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = errorJSON
	e.Use(NewTokenBucket(cfg, nil))
	e.POST("/api/v1/user/refreshToken", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func post(e *echo.Echo, agent string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/refreshToken", nil)
	req.Header.Set("User-Agent", agent)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucketLocalFallback(t *testing.T) {
	e := limitedServer(config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   3,
		RefillInterval: 15 * time.Minute,
		TTL:            30 * time.Minute,
		KeyStrategy:    "ip_agent",
		Prefix:         "rl:test",
	})

	for i := 0; i < 3; i++ {
		rec := post(e, "curl")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := post(e, "curl")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotEqual(t, "0", rec.Header().Get("Retry-After"))

	// a different user agent from the same address has its own bucket
	assert.Equal(t, http.StatusOK, post(e, "browser").Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	e := limitedServer(config.RateLimitConfig{Enabled: false, Capacity: 1})
	for i := 0; i < 5; i++ {
		rec := post(e, "curl")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tweet/getAllTweets", nil)
	req.Header.Set("User-Agent", "agent")
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/tweet/getAllTweets")

	key := func(strategy string) string {
		return buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
	}
	assert.Equal(t, "rl:ip:10.0.0.1", key("ip"))
	assert.Equal(t, "rl:ip:10.0.0.1:ua:agent", key("ip_agent"))
	assert.Equal(t, "rl:ip:10.0.0.1:route:GET /api/v1/tweet/getAllTweets", key("ip_route"))
	assert.Equal(t, "rl:user:anon", key("user"))
	assert.True(t, strings.HasPrefix(key(""), "rl:ip:10.0.0.1:user:anon:route:"))
}

func TestLocalBucketsSweepIdleKeys(t *testing.T) {
	l := newLocalBuckets(config.RateLimitConfig{
		Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute,
	})
	now := time.Now()
	assert.True(t, l.take("a", now).allowed)
	assert.False(t, l.take("a", now).allowed)

	later := now.Add(2 * time.Minute)
	assert.True(t, l.take("b", later).allowed)
	assert.NotContains(t, l.buckets, "a")
}
