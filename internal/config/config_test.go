package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"10d": 240 * time.Hour,
		"90":  90 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "xd", "soon"} {
		_, err := ParseTTL(bad)
		assert.Error(t, err, bad)
	}
}

func TestRefreshRateLimitDefaults(t *testing.T) {
	c := LoadRefreshRateLimitConfig()
	assert.Equal(t, 3, c.Capacity)
	assert.Equal(t, 3, c.RefillTokens)
	assert.Equal(t, 15*time.Minute, c.RefillInterval)
	assert.Equal(t, "ip_agent", c.KeyStrategy)
	assert.GreaterOrEqual(t, c.TTL, 5*c.RefillInterval)
}

func TestRateLimitEnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	c := LoadRateLimitConfig()
	assert.Equal(t, 7, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.False(t, c.Enabled)
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.False(t, c.Methods["POST"])
}
