package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-print/internal/config"
)

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LoggerConfig{Level: "info", Format: "json"}))

	log.Info("printer connected", "device", "PT-210")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "printer connected", entry["msg"])
	assert.Equal(t, "PT-210", entry["device"])
}

func TestNewHandlerTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LoggerConfig{Level: "warn", Format: "text"}))

	log.Info("dropped")
	log.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "parseLevel(%q)", tt.input)
	}
}

func TestOpenOutputStd(t *testing.T) {
	w, closer, err := openOutput("stdout")
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, os.Stdout, w)

	w, closer, err = openOutput("")
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, os.Stderr, w)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.log")

	log, closer, err := New(config.LoggerConfig{Level: "debug", Format: "text", Output: path})
	require.NoError(t, err)
	log.Debug("hello file")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file"))
}

func TestNewBadOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "no", "such", "dir.log")})
	assert.ErrorContains(t, err, "open log output")
}
