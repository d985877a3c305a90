package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_StderrLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "key=value")
}

func TestNewLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nulfwd.log")
	var stderr bytes.Buffer
	logger, closer, err := newLogger(LogConfig{Level: "debug", File: path, MaxSize: 1, MaxBackups: 1}, &stderr)
	require.NoError(t, err)

	logger.Debug("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"to file\"")
	assert.Empty(t, stderr.String())
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, _, err := newLogger(LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSetupLogging_RestoresDefault(t *testing.T) {
	prev := slog.Default()
	var buf bytes.Buffer
	restore, err := setupLogging(LogConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	slog.Info("captured")
	restore()

	assert.Contains(t, buf.String(), "captured")
	assert.Same(t, prev, slog.Default())
}
