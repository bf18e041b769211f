// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format values accepted by Setup.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup configures the global slog logger based on the desired format and verbosity.
func Setup(format string, verbose bool) *slog.Logger {
	return SetupWriter(os.Stderr, format, verbose)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, format string, verbose bool) *slog.Logger {
	logger := New(w, format, verbose)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without installing it as the default.
func New(w io.Writer, format string, verbose bool) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
