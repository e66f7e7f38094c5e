package batchget

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with read-path specific helpers, giving log
// lines consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// LogMultiGet logs the outcome of one batched lookup.
func (l *Logger) LogMultiGet(ctx context.Context, keys, resolved int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "multiget failed",
			"keys", keys,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "multiget completed",
		"keys", keys,
		"resolved", resolved,
	)
}
