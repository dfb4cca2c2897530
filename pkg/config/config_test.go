package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SECRET_KEY", "shh")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SECRET_KEY", "shh")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ModulePort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.StreamPipelineEnabled)
	assert.Equal(t, 60, cfg.DefaultRateLimitPerMinute)
}

func TestLoadPlatformCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SECRET_KEY", "shh")
	t.Setenv("TWITCH_CLIENT_ID", "abc")
	t.Setenv("TWITCH_BOT_TOKEN", "xyz")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Platform["twitch"].ClientID)
	assert.Equal(t, "xyz", cfg.Platform["twitch"].BotToken)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Config{DatabaseURL: "x", RedisURL: "y", SecretKey: "z", ModulePort: 0}
	assert.ErrorContains(t, cfg.Validate(), "MODULE_PORT")
}
