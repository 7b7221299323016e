package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
server:
  address: ":9090"
socket:
  ping_interval: 15s
  pong_timeout: 45s
auth:
  jwt_secret: "test-secret"
  access_token_ttl: 1h
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Socket.PingInterval)
	assert.Equal(t, 45*time.Second, cfg.Socket.PongTimeout)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Presence.QueryTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"pong not after ping", func(c *Config) { c.Socket.PongTimeout = c.Socket.PingInterval }},
		{"zero query timeout", func(c *Config) { c.Presence.QueryTimeout = 0 }},
		{"worker id too large", func(c *Config) { c.Snowflake.WorkerID = 1024 }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"rate limit window", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.Window = 0 }},
		{"tracing without jaeger url", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.JaegerURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
