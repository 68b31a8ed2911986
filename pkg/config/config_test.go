package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "memory", cfg.Directory.Type)
	assert.Equal(t, 8090, cfg.Adapters.Relay.Port)
	assert.Equal(t, "/ws", cfg.Adapters.Relay.Path)
	assert.Equal(t, 8080, cfg.Adapters.API.Port)
	assert.False(t, cfg.Adapters.Relay.TrustClientFrom)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
metrics:
  enabled: true
directory:
  type: badger
  badger:
    db_path: /var/lib/squawk
adapters:
  relay:
    port: 9001
    max_connections: 500
    trust_client_from: true
  api:
    port: 9002
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "badger", cfg.Directory.Type)
	assert.Equal(t, "/var/lib/squawk", cfg.Directory.Badger["db_path"])
	assert.Equal(t, 9001, cfg.Adapters.Relay.Port)
	assert.Equal(t, 500, cfg.Adapters.Relay.MaxConnections)
	assert.True(t, cfg.Adapters.Relay.TrustClientFrom)
	assert.Equal(t, 9002, cfg.Adapters.API.Port)

	// Unspecified values still get defaults.
	assert.Equal(t, 10*time.Second, cfg.Adapters.Relay.ShutdownTimeout)
	assert.Equal(t, int64(1<<20), cfg.Adapters.Relay.MaxMessageBytes)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: verbose
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_PortConflict(t *testing.T) {
	path := writeConfigFile(t, `
adapters:
  relay:
    port: 9000
  api:
    port: 9000
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoad_PingMustBeShorterThanPong(t *testing.T) {
	path := writeConfigFile(t, `
adapters:
  relay:
    ping_interval: 60s
    pong_timeout: 30s
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping_interval")
}

func TestLoad_BadgerRequiresDBPath(t *testing.T) {
	path := writeConfigFile(t, `
directory:
  type: badger
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_path")
}

func TestLoad_UnknownStoreType(t *testing.T) {
	path := writeConfigFile(t, `
directory:
  type: spreadsheet
`)

	_, err := Load(path)
	require.Error(t, err)
}
