// Package logger builds the slog loggers used by reachctl.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Format selects the slog handler
type Format string

// Supported formats
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New returns a slog.Logger tagged with the service name. Unknown formats fall back to text.
func New(service string, level slog.Level, format Format, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", service)
}

// ParseLevel maps debug, info, warn/warning and error to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// ParseFormat maps a flag value to a Format
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}
