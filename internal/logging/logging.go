// Package logging builds the process logger: human or JSON records at the
// configured level on one writer, fanned out with error records as JSON on a
// second writer for collection.
package logging

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// New returns a logger writing to out at level, and errors additionally to errOut.
// A nil errOut disables the error stream.
func New(level, format string, out, errOut io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var main slog.Handler
	if strings.EqualFold(format, "json") {
		main = slog.NewJSONHandler(out, opts)
	} else {
		main = slog.NewTextHandler(out, opts)
	}
	if errOut == nil {
		return slog.New(main)
	}

	errHandler := slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(slogmulti.Fanout(main, errHandler))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
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
