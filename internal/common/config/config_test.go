package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/garaad/community/internal/common/errors"
)

const testSecret = "test-secret-key-must-be-at-least-32-bytes-long"

func TestLoadCommunityConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadCommunityConfig()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.False(t, cfg.RequireAuthentication)
	assert.Equal(t, TransportMemory, cfg.GroupTransport)
	assert.Equal(t, OverflowDisconnect, cfg.WebSocket.OverflowPolicy)
	assert.Equal(t, 256, cfg.WebSocket.SendBufferSize)
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod)
}

func TestLoadCommunityConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadCommunityConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrMissingRequiredEnv))
}

func TestLoadCommunityConfig_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	_, err := LoadCommunityConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrInvalidJWTSecret))
}

func TestLoadCommunityConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("REQUIRE_AUTHENTICATION", "true")
	t.Setenv("GROUP_TRANSPORT", "REDIS")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WS_OVERFLOW_POLICY", "drop")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://garaad.so, https://www.garaad.so")

	cfg, err := LoadCommunityConfig()
	require.NoError(t, err)

	assert.True(t, cfg.RequireAuthentication)
	assert.Equal(t, TransportRedis, cfg.GroupTransport)
	assert.Equal(t, OverflowDrop, cfg.WebSocket.OverflowPolicy)
	assert.Equal(t, []string{"https://garaad.so", "https://www.garaad.so"}, cfg.WebSocket.AllowedOrigins)
}

func TestLoadCommunityConfig_RedisWithoutURL(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("GROUP_TRANSPORT", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := LoadCommunityConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrInvalidConfig))
}

func TestLoadCommunityConfig_InvalidOverflowPolicy(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WS_OVERFLOW_POLICY", "block")

	_, err := LoadCommunityConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, commonerrors.ErrInvalidConfig))
}

func TestLoadCommunityConfig_PingMustBeShorterThanPong(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WS_PONG_WAIT", "10s")
	t.Setenv("WS_PING_PERIOD", "20s")

	_, err := LoadCommunityConfig()
	require.Error(t, err)
}
