package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-platform/internal/config"
)

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCacheKeyVariesWithQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}
	keyFor := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/v1/tweet/getAllTweets")
		return cacheKeyFrom(cfg, c)
	}
	a := keyFor("/api/v1/tweet/getAllTweets?page=1")
	assert.Equal(t, a, keyFor("/api/v1/tweet/getAllTweets?page=1"))
	assert.NotEqual(t, a, keyFor("/api/v1/tweet/getAllTweets?page=2"))
}

func TestCacheWithoutRedisIsPassthrough(t *testing.T) {
	calls := 0
	e := echo.New()
	e.GET("/feed", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "feed")
	}, NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute}, nil))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/feed")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
}
