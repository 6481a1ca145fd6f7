package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig describes one token bucket.  The same shape serves the
// general API limiter and the stricter refresh-token limiter; only the
// environment prefix differs.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the general limiter (RATE_LIMIT_*).
func LoadRateLimitConfig() RateLimitConfig {
	return loadBucket("RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       60,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	})
}

// LoadRefreshRateLimitConfig reads the refresh-token limiter
// (REFRESH_RATE_LIMIT_*).  The default allows 3 renewals per 15 minutes per
// client address and user agent.
func LoadRefreshRateLimitConfig() RateLimitConfig {
	return loadBucket("REFRESH_RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   3,
		RefillInterval: 15 * time.Minute,
		TTL:            30 * time.Minute,
		KeyStrategy:    "ip_agent",
		Prefix:         "rl:refresh",
	})
}

func loadBucket(env string, def RateLimitConfig) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool(env+"_ENABLED", def.Enabled),
		Capacity:       envInt(env+"_CAPACITY", def.Capacity),
		RefillTokens:   envInt(env+"_REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(env+"_REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(env+"_TTL", def.TTL),
		KeyStrategy:    envStr(env+"_KEY_STRATEGY", def.KeyStrategy),
		Prefix:         envStr(env+"_PREFIX", def.Prefix),
		Debug:          envBool(env+"_DEBUG", false),
	}
	if b := envInt(env+"_BURST", -1); b > 0 { c.Capacity = b }
	if every := envDur(env+"_REFILL_EVERY", 0); every > 0 {
		c.RefillTokens = 1
		c.RefillInterval = every
	}
	return c.normalize()
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 { c.Capacity = 1 }
	if c.RefillTokens < 1 { c.RefillTokens = 1 }
	if c.RefillInterval <= 0 { c.RefillInterval = time.Second }
	minTTL := 5 * c.RefillInterval
	if c.TTL < minTTL { c.TTL = minTTL }
	return c
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" { return d }
	switch v {
	case "1","true","TRUE","True","yes","YES","on","ON": return true
	case "0","false","FALSE","False","no","NO","off","OFF": return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k); if v == "" { return d }
	if n, err := strconv.Atoi(v); err == nil { return n }
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k); if v == "" { return d }
	if dur, err := ParseTTL(v); err == nil { return dur }
	return d
}
