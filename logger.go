// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with grid client helpers so operations log with
// consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a config level name to a slog level. Unknown names map to
// info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// WithNode adds a node field to the logger.
func (l *Logger) WithNode(id string) *Logger {
	return &Logger{Logger: l.Logger.With("node", id)}
}

// WithCache adds a cache field to the logger.
func (l *Logger) WithCache(name string) *Logger {
	return &Logger{Logger: l.Logger.With("cache", name)}
}

// LogPut logs a cache put.
func (l *Logger) LogPut(ctx context.Context, node string, partition int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put failed",
			"node", node,
			"partition", partition,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "put completed",
		"node", node,
		"partition", partition,
		"duration", d,
	)
}

// LogGet logs a cache get.
func (l *Logger) LogGet(ctx context.Context, node string, partition int, found bool, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get failed",
			"node", node,
			"partition", partition,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "get completed",
		"node", node,
		"partition", partition,
		"found", found,
		"duration", d,
	)
}

// LogRemove logs a cache remove.
func (l *Logger) LogRemove(ctx context.Context, node string, partition int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"node", node,
			"partition", partition,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "remove completed",
		"node", node,
		"partition", partition,
		"duration", d,
	)
}

// LogExecute logs a compute task.
func (l *Logger) LogExecute(ctx context.Context, task, node string, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "task failed",
			"task", task,
			"node", node,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "task completed",
		"task", task,
		"node", node,
		"duration", d,
	)
}

// LogDial logs a connection attempt.
func (l *Logger) LogDial(ctx context.Context, node, addr string, err error) {
	if err != nil {
		l.WarnContext(ctx, "dial failed",
			"node", node,
			"addr", addr,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "connected",
		"node", node,
		"addr", addr,
	)
}

// LogTopology logs a topology change.
func (l *Logger) LogTopology(ctx context.Context, version int64, nodes int) {
	l.InfoContext(ctx, "topology updated",
		"version", version,
		"nodes", nodes,
	)
}
