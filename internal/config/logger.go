package config

import (
	"io"
	"log/slog"

	"github.com/pterm/pterm"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// NewLogger builds the process logger. Text output goes through pterm so it
// matches the console tables; json is meant for log collectors.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if c.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
	}
	logger := pterm.DefaultLogger.WithLevel(ptermLevel(c.LogLevel)).WithWriter(w)
	return slog.New(pterm.NewSlogHandler(logger))
}

func ptermLevel(l slog.Level) pterm.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case l <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case l <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}
