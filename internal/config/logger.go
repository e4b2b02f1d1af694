package config

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a config level name onto a slog level. Unknown names are
// info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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

// NewLogger builds the logger described by the advanced settings. It does not
// set the global logger.
func (c *AppConfig) NewLogger(outW io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(c.Advanced.LogLevel)}
	var handler slog.Handler

	if strings.EqualFold(c.Advanced.LogFormat, "json") {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}
