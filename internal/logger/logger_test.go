package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

// TestContextLogger checks that named and key-value loggers travel through the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "poller")
	ctx = WithKV(ctx, "tick", 7)

	InfoKV(ctx, "reading stored", "temperature", 21.5)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "poller", entries[0].LoggerName)
	require.Equal(t, "reading stored", entries[0].Message)

	fields := entries[0].ContextMap()
	require.EqualValues(t, 7, fields["tick"])
	require.InDelta(t, 21.5, fields["temperature"], 1e-9)
}

// TestFromContext_FallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithRotatingFile writes through the tee and finds the entry on disk.
func TestWithRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monitor.log")
	l := New(zapcore.InfoLevel, WithRotatingFile(FileOptions{Path: path}))

	l.Info("sensor read failed")
	require.NoError(t, l.Sync())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "sensor read failed")
	require.Contains(t, string(contents), "INFO")
}
