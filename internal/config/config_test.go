package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, StoreModeEmbedded, cfg.StoreMode)
	assert.Equal(t, ".latticegraphd/data", cfg.StorePath)
	assert.Equal(t, ".latticegraphd/latticegraphd.sock", cfg.Listen.Socket)
	assert.Equal(t, "stdout", cfg.OTel.Exporter)
}

func TestLoad_YamlOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
store_mode: server
store_dsn: "user:pass@tcp(127.0.0.1:3306)/latticegraph"
listen:
  tcp: "0.0.0.0:9443"
otel:
  exporter: otlp
  endpoint: "collector:4318"
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, StoreModeServer, cfg.StoreMode)
	assert.Equal(t, "user:pass@tcp(127.0.0.1:3306)/latticegraph", cfg.StoreDSN)
	assert.Equal(t, "0.0.0.0:9443", cfg.Listen.TCP)
	assert.Equal(t, "otlp", cfg.OTel.Exporter)
	assert.Equal(t, "collector:4318", cfg.OTel.Endpoint)
}

func TestLoad_EnvOverridesYaml(t *testing.T) {
	path := writeConfigFile(t, "store_path: /from/yaml\n")
	t.Setenv("LATTICEGRAPHD_STORE_PATH", "/from/env")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.StorePath)
}

func TestLoad_RejectsInvalidStoreMode(t *testing.T) {
	path := writeConfigFile(t, "store_mode: carrier-pigeon\n")
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestLoad_ServerModeRequiresDSN(t *testing.T) {
	path := writeConfigFile(t, "store_mode: server\n")
	_, err := Load(path, nil)
	require.Error(t, err)
}

func TestLoad_RequiresAtLeastOneListener(t *testing.T) {
	path := writeConfigFile(t, "listen:\n  socket: \"\"\n")
	_, err := Load(path, nil)
	require.Error(t, err)
}
