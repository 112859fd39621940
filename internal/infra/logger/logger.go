// Package logger builds the process-wide structured logger from config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ensemble-ai/internal/infra/config"
)

// New builds a logger from cfg. The returned closer releases the log sink;
// it is a no-op for the standard streams and must be called for file sinks.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	s, err := resolveSink(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("log sink %q: %w", cfg.Output, err)
	}

	opts := &slog.HandlerOptions{Level: levelFor(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(s.w, opts)
	} else {
		h = slog.NewTextHandler(s.w, opts)
	}
	return slog.New(h), s.close, nil
}

// levelFor maps a config level string onto slog.Level. Unknown strings fall
// back to info rather than failing; validation flags them earlier.
func levelFor(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type sink struct {
	w     io.Writer
	close func() error
}

// resolveSink maps the configured output onto a writer. Anything that is
// not a named stream is treated as a file path and opened for append. Log
// files may carry prompt content, hence the owner-only mode.
func resolveSink(target string) (sink, error) {
	switch strings.ToLower(target) {
	case "", "stderr":
		return sink{w: os.Stderr, close: nopClose}, nil
	case "stdout":
		return sink{w: os.Stdout, close: nopClose}, nil
	case "discard":
		return sink{w: io.Discard, close: nopClose}, nil
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return sink{}, err
	}
	return sink{w: f, close: f.Close}, nil
}

func nopClose() error { return nil }
