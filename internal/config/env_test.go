package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_FLOAT", "1.5")

	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, 3*time.Second, envDur("X_DUR", 3*time.Second))
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, 1.5, envFloat("X_FLOAT", 0))
	assert.Equal(t, "dflt", getenv("X_UNSET_FOR_TEST", "dflt"))
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cc := LoadCacheConfig()
	assert.True(t, cc.Methods["GET"])
	assert.True(t, cc.Methods["HEAD"])
	assert.False(t, cc.Methods["POST"])
}

func TestMailConfigEnabled(t *testing.T) {
	assert.False(t, MailConfig{Host: "smtp.local"}.Enabled())
	assert.True(t, MailConfig{Host: "smtp.local", From: "civic@local"}.Enabled())
}

func TestLoadRedisConfigHostPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)
}
