package ddp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ddp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server: wss://chat.example.com/websocket
username: bot
password: secret
use_ldap: true
queue_size: 512
rate_limit:
  messages_per_second: 25
  burst: 50
  enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/websocket", cfg.Server)
	assert.Equal(t, "bot", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.True(t, cfg.UseLDAP)
	assert.Equal(t, 512, cfg.QueueSize)
	require.NotNil(t, cfg.RateLimit)
	assert.Equal(t, rate.Limit(25), cfg.RateLimit.MessagesPerSecond)
	assert.Equal(t, 50, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadConfigMinimal(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, "server: wss://host/websocket\n"))
	require.NoError(t, err)
	assert.Equal(t, "wss://host/websocket", cfg.Server)
	assert.Nil(t, cfg.RateLimit)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "server: [unclosed"))
		require.Error(t, err)
	})

	t.Run("missing server", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "username: bot\n"))
		require.Error(t, err)
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, "server: wss://host/websocket\n"))
	require.NoError(t, err)

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.IsAlive())
}
