// Package logging configures the slog logger shared by the tools.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Levels lists the accepted -log-level values.
const Levels = "debug|info|warn|error"

func ResolveLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// New returns a text logger on stderr at the given level.
func New(level string) (*slog.Logger, error) {
	return NewWriter(os.Stderr, level)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level string) (*slog.Logger, error) {
	logLevel, err := ResolveLogLevel(level)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler), nil
}

// Init builds the logger and installs it as the slog default.
func Init(level string) (*slog.Logger, error) {
	logger, err := New(level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
