package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/topology"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeFile(t, tmpDir, "config.yml", `
vlanswitch:
  node:
    hostname: "ctl-01"
  control:
    pid_file: "/tmp/test.pid"
    socket: "/tmp/test.sock"
  log:
    level: "debug"
    format: "text"
  kafka:
    brokers:
      - "localhost:9092"
  dispatch:
    sinks: ["log", "kafka"]
    kafka:
      topic: "of-commands"
  engine:
    partitions: 4
  topology:
    vlans:
      - id: 10
        members:
          - {port: 2, switch: 1}
          - {port: 1, switch: 1}
      - id: "20"
        members:
          - {port: 4, switch: 2}
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ctl-01", cfg.Node.Hostname)
	assert.Equal(t, "/tmp/test.pid", cfg.Control.PIDFile)
	assert.Equal(t, "/tmp/test.sock", cfg.Control.Socket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []string{"log", "kafka"}, cfg.Dispatch.Sinks)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Dispatch.Kafka.Brokers, "inherited from vlanswitch.kafka")
	assert.Equal(t, "of-commands", cfg.Dispatch.Kafka.Topic)
	assert.Equal(t, 4, cfg.Engine.Partitions)

	require.Len(t, cfg.Topology.VLANs, 2)
	assert.Equal(t, core.VLANID("10"), cfg.Topology.VLANs[0].ID)
	assert.Equal(t, []topology.Member{{Port: 2, Switch: 1}, {Port: 1, Switch: 1}}, cfg.Topology.VLANs[0].Members)
	assert.Equal(t, core.VLANID("20"), cfg.Topology.VLANs[1].ID)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
vlanswitch:
  node:
    hostname: "ctl-01"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/run/vlanswitch.sock", cfg.Control.Socket)
	assert.Equal(t, "/var/run/vlanswitch.pid", cfg.Control.PIDFile)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)
	assert.Equal(t, []string{"log"}, cfg.Dispatch.Sinks)
	assert.Equal(t, 4096, cfg.Engine.QueueSize)
	assert.Equal(t, "memory", cfg.Bindings.Store)
	assert.False(t, cfg.CommandChannel.Enabled)
	assert.False(t, cfg.Events.Kafka.Enabled)
	assert.Empty(t, cfg.Topology.VLANs)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", `
vlanswitch:
  log:
    level: "verbose"
`},
		{"log format", `
vlanswitch:
  log:
    format: "xml"
`},
		{"unknown sink", `
vlanswitch:
  dispatch:
    sinks: ["stdout"]
`},
		{"kafka sink without brokers", `
vlanswitch:
  dispatch:
    sinks: ["kafka"]
`},
		{"command channel without brokers", `
vlanswitch:
  command_channel:
    enabled: true
    kafka:
      topic: "cmds"
`},
		{"events without brokers", `
vlanswitch:
  events:
    kafka:
      enabled: true
`},
		{"bindings store", `
vlanswitch:
  bindings:
    store: "redis"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
vlanswitch:
  node:
    hostname: "ctl-01"
  log:
    level: "info"
`)
	t.Setenv("VLANSWITCH_LOG_LEVEL", "warn")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "VLANSWITCH_TEST_DOTENV=from-file\n")
	t.Setenv("VLANSWITCH_TEST_DOTENV", "")
	os.Unsetenv("VLANSWITCH_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "from-file", os.Getenv("VLANSWITCH_TEST_DOTENV"))
}

func TestCommandChannelGroupDefault(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yml", `
vlanswitch:
  node:
    hostname: "ctl-02"
  kafka:
    brokers: ["k1:9092"]
  command_channel:
    enabled: true
    kafka:
      topic: "cmds"
  events:
    kafka:
      enabled: true
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "vlanswitch-ctl-02", cfg.CommandChannel.Kafka.GroupID)
	assert.Equal(t, []string{"k1:9092"}, cfg.CommandChannel.Kafka.Brokers)
	assert.Equal(t, "vlanswitch-events", cfg.Events.Kafka.GroupID)
	assert.Equal(t, "vlanswitch-events", cfg.Events.Kafka.Topic)
}

func TestSQLiteBindingsPathDefault(t *testing.T) {
	cfg := GlobalConfig{
		Log:      LogConfig{Level: "info", Format: "json"},
		Node:     NodeConfig{Hostname: "h"},
		DataDir:  "/var/lib/vlanswitch/",
		Bindings: BindingsConfig{Store: "sqlite"},
	}
	require.NoError(t, cfg.ValidateAndApplyDefaults())
	assert.Equal(t, "/var/lib/vlanswitch/bindings.db", cfg.Bindings.Path)
}
