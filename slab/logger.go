package slab

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with slab-specific operation helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// WithDataset adds a dataset field.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{Logger: l.Logger.With("dataset", name)}
}

// LogOpen logs array construction.
func (l *Logger) LogOpen(ctx context.Context, name string, shape []uint64, order Order, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"dataset", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "opened",
		"dataset", name,
		"shape", shape,
		"order", order.String(),
	)
}

// LogSubarray logs one hyperslab transfer.
func (l *Logger) LogSubarray(ctx context.Context, origin, extent []uint64, fast bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "subarray failed",
			"origin", origin,
			"extent", extent,
			"error", err,
		)
		return
	}
	path := "fast"
	if !fast {
		path = "fallback"
	}
	l.DebugContext(ctx, "subarray completed",
		"origin", origin,
		"extent", extent,
		"path", path,
	)
}
