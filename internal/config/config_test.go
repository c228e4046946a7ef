package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no config file is found and defaults
	// apply.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8095, cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Monitor.MaxTraces)
	assert.Equal(t, "correlation-id", cfg.Monitor.CorrelationHeader)
	assert.Equal(t, 5*time.Second, cfg.Monitor.CacheTTL)
	assert.Equal(t, 50, cfg.Monitor.StaleMarkInterval)
	assert.Equal(t, 30*time.Second, cfg.Monitor.HealthyAge)
	assert.Equal(t, 5, cfg.Monitor.SlowTraceCount)
	assert.InDelta(t, 0.10, cfg.Monitor.DriftTraceRatio, 0.001)
	assert.Equal(t, int64(50), cfg.Monitor.DriftMessageCount)
	assert.Equal(t, int64(20), cfg.Tasks.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, cfg.Tasks.WarnAfter)
	assert.Equal(t, time.Second, cfg.Poll.BaseTimeout)
	assert.Equal(t, 30*time.Second, cfg.Poll.MaxTimeout)
	assert.InDelta(t, 1.2, cfg.Poll.BackoffFactor, 0.001)
	assert.Equal(t, "nats://localhost:4222", cfg.Source.NATSURL)
	assert.Equal(t, "kafkamon.records", cfg.Source.Subject)
	assert.False(t, cfg.Publish.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
monitor:
  max_traces: 250
  correlation_header: x-trace-id
poll:
  max_timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Monitor.MaxTraces)
	assert.Equal(t, "x-trace-id", cfg.Monitor.CorrelationHeader)
	assert.Equal(t, 10*time.Second, cfg.Poll.MaxTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Monitor.CacheTTL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadTopology_EmptyPath(t *testing.T) {
	topo, err := LoadTopology("")
	require.NoError(t, err)
	assert.Empty(t, topo.Topics)
	assert.Empty(t, topo.Edges)
}

func TestLoadTopology_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	content := `
topics:
  - orders.created
  - orders.validated
edges:
  - from: orders.created
    to: orders.validated
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	topo, err := LoadTopology(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders.created", "orders.validated"}, topo.Topics)
	require.Len(t, topo.Edges, 1)
	assert.Equal(t, Edge{From: "orders.created", To: "orders.validated"}, topo.Edges[0])
}

func TestLoadTopology_MissingFile(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadTopology_BadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte("topics: {bad"), 0o644))

	_, err := LoadTopology(path)
	assert.Error(t, err)
}
