package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vlanswitch/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if err != nil {
				t.Errorf("parseLevel(%q) returned error: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", "fatal", ""} {
		t.Run(input, func(t *testing.T) {
			if _, err := parseLevel(input); err == nil {
				t.Errorf("parseLevel(%q) should return error, got nil", input)
			}
		})
	}
}

func TestInitStdoutOnly(t *testing.T) {
	require.NoError(t, Init(config.LogConfig{Level: "info", Format: "json"}))
	defer Close()

	assert.Equal(t, slog.LevelInfo, Level())
	assert.NotNil(t, GetLogger())
}

func TestInitWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "vlanswitch.log")

	cfg := config.LogConfig{
		Level:  "debug",
		Format: "text",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{
				Enabled:  true,
				Path:     logPath,
				Rotation: config.RotationConfig{MaxSizeMB: 1, MaxBackups: 1},
			},
		},
	}
	require.NoError(t, Init(cfg))

	slog.Debug("learned", "vlan", "10", "switch", 1)
	GetLogger().WithField("partition", 3).Info("partition started")
	require.NoError(t, Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "msg=learned")
	assert.Contains(t, content, "vlan=10")
	assert.Contains(t, content, "partition started")
	assert.Contains(t, content, "partition=3")
}

func TestInitRejectsBadConfig(t *testing.T) {
	assert.Error(t, Init(config.LogConfig{Level: "loud", Format: "json"}))
	assert.Error(t, Init(config.LogConfig{Level: "info", Format: "xml"}))
	assert.Error(t, Init(config.LogConfig{
		Level: "info", Format: "json",
		Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{Enabled: true}},
	}))
	assert.Error(t, Init(config.LogConfig{
		Level: "info", Format: "json",
		Outputs: config.LogOutputsConfig{Loki: config.LokiOutputConfig{Enabled: true}},
	}))
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, Init(config.LogConfig{Level: "info", Format: "json"}))
	defer Close()

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, slog.LevelDebug, Level())
	assert.True(t, GetLogger().IsDebugEnabled())

	assert.Error(t, SetLevel("chatty"))
	require.NoError(t, SetLevel("info"))
	assert.False(t, GetLogger().IsDebugEnabled())
}

func TestLogrusPatternFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := newLogrusAdapter(&buf, "[%level] %msg %field\n", "debug")

	l.WithFields(map[string]interface{}{"b": 2, "a": "x"}).Debugf("bucket %d", 7)

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, "[debug] bucket 7 a=x,b=2", line)
}
