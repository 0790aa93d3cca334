package cqp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	assert.Equal(t, 1, config.LocalSize)
	assert.Equal(t, 1, config.RemoteSize)
	assert.Zero(t, config.ConnectTimeout)
	assert.Equal(t, 30*time.Second, config.HeartbeatInterval)
}

func TestPoolConfigBuilder(t *testing.T) {
	config := NewPoolConfigBuilder().
		WithLocalSize(4).
		WithRemoteSize(2).
		WithConnectTimeout(500 * time.Millisecond).
		WithHeartbeatInterval(10 * time.Second).
		Build()

	assert.Equal(t, 4, config.LocalSize)
	assert.Equal(t, 2, config.RemoteSize)
	assert.Equal(t, 500*time.Millisecond, config.ConnectTimeout)
	assert.Equal(t, 10*time.Second, config.HeartbeatInterval)
}

func TestPoolConfigSizeForDistance(t *testing.T) {
	config := NewPoolConfigBuilder().WithLocalSize(4).WithRemoteSize(2).Build()

	assert.Equal(t, 4, config.sizeFor(NodeDistanceLocal))
	assert.Equal(t, 2, config.sizeFor(NodeDistanceRemote))
}

func TestConvertJSONFileToConfig(t *testing.T) {
	fileNamePath := filepath.Join(t.TempDir(), "pool.json")
	require.NoError(t, os.WriteFile(fileNamePath, []byte(`{
		"LocalSize": 3,
		"RemoteSize": 2,
		"ConnectTimeout": 5,
		"HeartbeatInterval": 60
	}`), 0o600))

	config, err := ConvertJSONFileToConfig(fileNamePath)
	require.NoError(t, err)

	assert.Equal(t, 3, config.LocalSize)
	assert.Equal(t, 2, config.RemoteSize)
	assert.Equal(t, 5*time.Second, config.ConnectTimeout)
	assert.Equal(t, time.Minute, config.HeartbeatInterval)
}

func TestConvertJSONFileToConfigAppliesDefaults(t *testing.T) {
	fileNamePath := filepath.Join(t.TempDir(), "pool.json")
	require.NoError(t, os.WriteFile(fileNamePath, []byte(`{"LocalSize": 2}`), 0o600))

	config, err := ConvertJSONFileToConfig(fileNamePath)
	require.NoError(t, err)

	assert.Equal(t, 2, config.LocalSize)
	assert.Equal(t, 1, config.RemoteSize)
	assert.Zero(t, config.ConnectTimeout)
	assert.Equal(t, DefaultHeartbeatInterval, config.HeartbeatInterval)
}

func TestConvertJSONFileToConfigMissingFile(t *testing.T) {
	_, err := ConvertJSONFileToConfig("does-not-exist.json")
	assert.Error(t, err)
}
