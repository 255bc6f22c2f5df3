package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 60*time.Second, cfg.CacheKeyWindow)
	assert.Equal(t, "https://api.ona.io", cfg.OnadataBaseURL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")
	t.Setenv("ONADATA_BASE_URL", "http://localhost:9000/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "http://localhost:9000", cfg.OnadataBaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "bad driver", env: map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "mysql"}},
		{name: "bad backend", env: map[string]string{"JWT_SECRET": "s", "CACHE_BACKEND": "redis"}},
		{name: "zero purge interval", env: map[string]string{"JWT_SECRET": "s", "CACHE_PURGE_INTERVAL": "0s"}},
		{name: "s3 without credentials", env: map[string]string{"JWT_SECRET": "s", "CACHE_BACKEND": "s3", "S3_ENDPOINT": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
