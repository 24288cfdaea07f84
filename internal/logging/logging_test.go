package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"stockbar/internal/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	t.Parallel()

	// Arrange
	var buf bytes.Buffer
	log, closer, err := logging.New(logging.Config{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	// Act
	log.Info("hidden")
	log.Warn("shown", "symbol", "ORCL")

	// Assert
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "symbol=ORCL")
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, closer, err := logging.New(logging.Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Debug("fetched", "source", "nasdaq")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "fetched", rec["msg"])
	require.Equal(t, "nasdaq", rec["source"])
	require.Equal(t, "DEBUG", rec["level"])
}

func TestNew_TeesToFile(t *testing.T) {
	t.Parallel()

	// Arrange
	path := filepath.Join(t.TempDir(), "logs", "stockbar.log")
	var buf bytes.Buffer
	log, closer, err := logging.New(logging.Config{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1}, &buf)
	require.NoError(t, err)

	// Act
	log.Info("cache saved")
	require.NoError(t, closer.Close())

	// Assert
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "cache saved")
	require.Contains(t, buf.String(), "cache saved")
}
