package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewayYAML = `
log:
  level: debug
  format: json
metrics:
  enabled: true
  service_name: bridge-mcp
  port: 9090
  path: /metrics
breaker:
  default:
    failure_threshold: 5
    failure_rate_threshold: 0.5
    rolling_window_size: 20
    base_cooldown: 5s
    max_cooldown: 60s
    cooldown_multiplier: 2.0
    half_open_max_attempts: 3
    half_open_success_threshold: 2
  servers:
    mcp-fs:
      failure_threshold: 3
      base_cooldown: 10s
`

// writeConfigFile 在临时目录写入配置文件并返回目录
func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func TestLoadAndUnmarshal(t *testing.T) {
	dir := writeConfigFile(t, "gateway.yaml", gatewayYAML)

	loader, err := New(
		WithConfigName("gateway"),
		WithConfigPaths(dir),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	var cfg GatewayConfig
	require.NoError(t, loader.Unmarshal(&cfg))

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)

	assert.Equal(t, 5, cfg.Breaker.Default.FailureThreshold)
	assert.Equal(t, 0.5, cfg.Breaker.Default.FailureRateThreshold)
	assert.Equal(t, 5*time.Second, cfg.Breaker.Default.BaseCooldown)
	assert.Equal(t, time.Minute, cfg.Breaker.Default.MaxCooldown)

	require.Contains(t, cfg.Breaker.Servers, "mcp-fs")
	assert.Equal(t, 3, cfg.Breaker.Servers["mcp-fs"].FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.Breaker.Servers["mcp-fs"].BaseCooldown)
}

func TestUnmarshalKey(t *testing.T) {
	dir := writeConfigFile(t, "gateway.yaml", gatewayYAML)
	loader := MustLoad(WithConfigName("gateway"), WithConfigPaths(dir))

	var log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}
	require.NoError(t, loader.UnmarshalKey("log", &log))
	assert.Equal(t, "debug", log.Level)

	assert.Equal(t, 5, loader.Get("breaker.default.failure_threshold"))
}

func TestEnvOverride(t *testing.T) {
	dir := writeConfigFile(t, "gateway.yaml", gatewayYAML)
	t.Setenv("BRIDGE_LOG_LEVEL", "error")

	loader := MustLoad(WithConfigName("gateway"), WithConfigPaths(dir))
	assert.Equal(t, "error", loader.Get("log.level"))
}

func TestMissingFileTolerated(t *testing.T) {
	loader, err := New(
		WithConfigName("does-not-exist"),
		WithConfigPaths(t.TempDir()),
	)
	require.NoError(t, err)
	assert.NoError(t, loader.Load(context.Background()),
		"missing config file falls back to env and defaults")
}

func TestValidatorRejectsBadConfig(t *testing.T) {
	dir := writeConfigFile(t, "gateway.yaml", gatewayYAML)

	wantErr := errors.New("port out of range")
	loader, err := New(
		WithConfigName("gateway"),
		WithConfigPaths(dir),
		WithValidator(func(l Loader) error {
			return wantErr
		}),
	)
	require.NoError(t, err)

	err = loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, wantErr)
}

func TestWatchCancelClosesChannel(t *testing.T) {
	dir := writeConfigFile(t, "gateway.yaml", gatewayYAML)
	loader := MustLoad(WithConfigName("gateway"), WithConfigPaths(dir))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must be closed after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after context cancellation")
	}
}
