package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITHUB_CLIENT_ID", "client-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "client-secret")
	t.Setenv("WORKSPACE_BASE_IMAGE", "ghcr.io/example/workspace:latest")
	t.Setenv("WORKSPACE_DEFAULT_DURATION", "30")
	t.Setenv("WORKSPACE_MAX_DURATION", "120")
	t.Setenv("WORKSPACE_DEFAULT_POOL_AFFINITY", "default")
	t.Setenv("WORKSPACE_DEFAULT_MAX_PER_NODE", "4")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadAppliesDefaultsWhenOptionalVarsAbsent(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "playground", cfg.ControlNamespace)
	assert.Equal(t, "playground-api", cfg.JWTIssuer)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.WorkspaceDefaultDuration)
	assert.Equal(t, 120*time.Minute, cfg.WorkspaceMaxDuration)
	assert.Equal(t, 4, cfg.MaxSessionsPerNode)
}

func TestLoadHonorsOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PLAYGROUND_CONTROL_NAMESPACE", "custom-ns")
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "5")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "custom-ns", cfg.ControlNamespace)
	assert.Equal(t, "custom-issuer", cfg.JWTIssuer)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "redis.internal", cfg.RedisHost)
	assert.Equal(t, "6380", cfg.RedisPort)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadFailsOnMissingRequiredVar(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFailsOnNonIntegerMaxPerNode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKSPACE_DEFAULT_MAX_PER_NODE", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFailsOnNonNumericDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKSPACE_DEFAULT_DURATION", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}
