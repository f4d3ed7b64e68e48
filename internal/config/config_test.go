package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CACHE_TTL_SECONDS", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 3, cfg.AIMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.AIRetryBase)
	assert.False(t, cfg.AuthEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("SESSION_MAX_IDLE", "90m")
	t.Setenv("PREFER_LOCAL", "true")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, DriverRedis, cfg.CacheBackend)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 90*time.Minute, cfg.SessionMaxIdle)
	assert.True(t, cfg.PreferLocal)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("AI_MAX_RETRIES", "three")
	t.Setenv("SESSION_MAX_IDLE", "-5m")
	t.Setenv("PREFER_LOCAL", "maybe")

	cfg := Load()
	assert.Equal(t, 3, cfg.AIMaxRetries)
	assert.Equal(t, time.Hour, cfg.SessionMaxIdle)
	assert.False(t, cfg.PreferLocal)
}

func TestValidate(t *testing.T) {
	valid := Config{
		StoreDriver:  DriverMemory,
		CacheBackend: DriverMemory,
		SessionStore: DriverMemory,
		CacheTTL:     time.Minute,
		AIMaxRetries: 3,
		JWTAlgorithm: "HS256",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"unknown store":           func(c *Config) { c.StoreDriver = "mongo" },
		"postgres without url":    func(c *Config) { c.StoreDriver = DriverPostgres },
		"pg sessions without url": func(c *Config) { c.SessionStore = DriverPostgres },
		"redis without url":       func(c *Config) { c.CacheBackend = DriverRedis },
		"sqlite without path":     func(c *Config) { c.SessionStore = DriverSQLite },
		"zero retries":            func(c *Config) { c.AIMaxRetries = 0 },
		"short secret":            func(c *Config) { c.JWTSecret = "short" },
		"insecure secret":         func(c *Config) { c.JWTSecret = "change-me-in-production" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	withAuth := valid
	withAuth.JWTSecret = "0123456789abcdef"
	assert.NoError(t, withAuth.Validate())
	assert.True(t, withAuth.AuthEnabled())
}
