package observability

import (
	"io"
	"log/slog"
	"strings"
)

// NewLoggerTo builds a logger that writes to w. Commands pass their stderr so
// logs never interleave with filter output.
//
// Level values: "debug", "info", "warn", "error" (default "info").
// Format values: "json", "text" (default "text").
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
