package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
http:
  addr: ":9090"
mqtt:
  broker: "tcp://localhost:1883"
  topic_prefix: "test"
dispatch:
  response_window_seconds: 30
  max_candidates: 3
registry:
  freshness_seconds: 10
  stale_after_seconds: 20
  sweep_interval_seconds: 15
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	require.Equal(t, "test", cfg.MQTT.TopicPrefix)
	require.Equal(t, 30, cfg.Dispatch.ResponseWindowSeconds)
	require.Equal(t, 3, cfg.Dispatch.MaxCandidates)
	require.Equal(t, 10, cfg.Registry.FreshnessSeconds)
	require.Equal(t, 20, cfg.Registry.StaleAfterSeconds)
	require.Equal(t, 15, cfg.Registry.SweepIntervalSeconds)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
mqtt:
  broker: "tcp://localhost:1883"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "fieldmatch", cfg.MQTT.TopicPrefix)
	require.Equal(t, "dispatchd", cfg.MQTT.ClientID)
	require.Equal(t, 60, cfg.Dispatch.ResponseWindowSeconds)
	require.Equal(t, 5, cfg.Dispatch.MaxCandidates)
	require.Equal(t, 30, cfg.Registry.FreshnessSeconds)
	require.Equal(t, 60, cfg.Registry.StaleAfterSeconds)
	require.Equal(t, 2, cfg.Estimator.TimeoutSeconds)
	require.Nil(t, cfg.Matching.Weights)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"http": {"addr": ":7070"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FD_HTTP__ADDR", ":6060")
	path := writeConfig(t, "config.yaml", `
http:
  addr: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":6060", cfg.HTTP.Addr)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
matching:
  weights:
    proximity: 0.9
    workload: 0.9
`)
	_, err := Load(path)
	require.Error(t, err)
}
