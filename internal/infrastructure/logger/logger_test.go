package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_JSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retailops.log")
	log, err := New(&Config{Level: "warn", Format: "json", Output: path, Service: "retailops"})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", zap.String("key", "B-1"))
	require.NoError(t, Sync(log))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "retailops", entry["service"])
	assert.Equal(t, "B-1", entry["key"])
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(&Config{Format: "console", Output: "stderr", Level: "debug"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
