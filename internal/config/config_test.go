// ABOUTME: Tests for config loading: env expansion, duration parsing, and
// ABOUTME: validation of backend modes and listen addresses.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
backend:
  mode: "local"
  database_path: "/tmp/hub.db"
  timeout: "15s"
agents:
  heartbeat_interval: "10s"
  heartbeat_timeout: "45s"
  history_limit: 128
auth:
  jwt_secret: "sekrit"
logging:
  level: "debug"
  format: "json"
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, BackendModeLocal, cfg.Backend.Mode)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Agents.HeartbeatInterval)
	assert.Equal(t, 45*time.Second, cfg.Agents.HeartbeatTimeout)
	assert.Equal(t, 128, cfg.Agents.HistoryLimit)
	assert.Equal(t, "sekrit", cfg.Auth.JWTSecret)
	// Metrics path defaults when enabled without one.
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("HUB_TEST_SECRET", "from-env")
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
backend:
  mode: "http"
  url: "http://localhost:9090"
auth:
  jwt_secret: "${HUB_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadUnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
backend:
  mode: "http"
  url: "http://localhost:9090"
auth:
  jwt_secret: "${HUB_TEST_DEFINITELY_UNSET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadDefaultsBackendModeToLocal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
backend:
  database_path: "/tmp/hub.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendModeLocal, cfg.Backend.Mode)
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing http_addr": `
backend:
  mode: "local"
  database_path: "/tmp/hub.db"
`,
		"local without database_path": `
server:
  http_addr: "localhost:8080"
backend:
  mode: "local"
`,
		"http without url": `
server:
  http_addr: "localhost:8080"
backend:
  mode: "http"
`,
		"unknown backend mode": `
server:
  http_addr: "localhost:8080"
backend:
  mode: "carrier-pigeon"
`,
		"tailscale without hostname": `
tailscale:
  enabled: true
backend:
  mode: "local"
  database_path: "/tmp/hub.db"
`,
		"bad duration": `
server:
  http_addr: "localhost:8080"
backend:
  mode: "local"
  database_path: "/tmp/hub.db"
agents:
  heartbeat_interval: "sometimes"
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestTailscaleModeNeedsNoHTTPAddr(t *testing.T) {
	path := writeConfig(t, `
tailscale:
  enabled: true
  hostname: "agent-hub"
backend:
  mode: "local"
  database_path: "/tmp/hub.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.Empty(t, cfg.Server.HTTPAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
