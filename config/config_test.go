package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "6379", cfg.Redis.Port)
	assert.Equal(t, "http://localhost:9099/signal", cfg.Relay.VideoServerURL)
	assert.Equal(t, 10*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, 1024, cfg.Events.QueueSize)
	assert.Equal(t, 54*time.Second, cfg.Socket.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.Socket.PongWait)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://exam.example.com, https://admin.example.com")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("VIDEO_SERVER_URL", "http://media:9099/signal/")
	t.Setenv("RELAY_TIMEOUT", "4s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://exam.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "http://media:9099/signal", cfg.Relay.VideoServerURL)
	assert.Equal(t, 4*time.Second, cfg.Relay.Timeout)
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsPingSlowerThanPong(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PING_PERIOD", "90s")

	_, err := Load()
	require.Error(t, err)
}
