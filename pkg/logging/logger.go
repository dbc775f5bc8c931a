package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New creates a JSON logger on stdout with the specified level
func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{Logger: slog.New(handler)}
}

// NewWithFile fans log records out to stdout and an append-only JSON file.
// If the file cannot be opened the logger falls back to stdout only. The
// returned close func is always safe to call.
func NewWithFile(level, path string) (*Logger, func() error) {
	if path == "" {
		return New(level), func() error { return nil }
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := New(level)
		logger.Error("failed to open log file, using stdout only", "error", err, "file", path)
		return logger, func() error { return nil }
	}
	return NewWithWriters(os.Stdout, file, level), file.Close
}

// NewWithWriters fans out to two JSON writers (for testing).
func NewWithWriters(primary, secondary io.Writer, level string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	handler := slogmulti.Fanout(
		slog.NewJSONHandler(primary, opts),
		slog.NewJSONHandler(secondary, opts),
	)
	return &Logger{Logger: slog.New(handler)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// With returns a logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
