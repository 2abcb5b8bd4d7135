package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ResolveLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	_, err := ResolveLogLevel("verbose")
	require.Error(t, err)
}

func TestNewWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden", "note", 60)
	logger.Warn("shown", "note", 69)
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "note=69")
}
