package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Logger wraps a slog.Logger and grades our own Level onto slog's levels so
// TRACE/FATAL (which slog does not have) still flow through one handler.
type Logger struct {
	inner *slog.Logger
	level Level
}

// Default is the process-wide logger used by packages that don't hold their own.
var Default = New(LevelInfo)

// New constructs a Logger at the given level, writing text-formatted records to stderr.
func New(level Level) *Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(level),
	})
	return &Logger{inner: slog.New(h), level: level}
}

// SetLevel adjusts the minimum level this logger emits.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

func (l *Logger) log(level Level, mod any, msg string, args ...any) {
	if level < l.level {
		return
	}
	name := fmt.Sprint(mod)
	kv := make([]any, 0, len(args)+2)
	kv = append(kv, "module", name)
	kv = append(kv, args...)
	l.inner.Log(context.Background(), slog.Level(level), msg, kv...)
}

// Trace logs a diagnostic-level message tagged with the module that emitted it.
func (l *Logger) Trace(mod any, msg string, args ...any) { l.log(LevelTrace, mod, msg, args...) }

// Debug logs a debug-level message tagged with the module that emitted it.
func (l *Logger) Debug(mod any, msg string, args ...any) { l.log(LevelDebug, mod, msg, args...) }

// Info logs an info-level message tagged with the module that emitted it.
func (l *Logger) Info(mod any, msg string, args ...any) { l.log(LevelInfo, mod, msg, args...) }

// Warn logs a warning-level message tagged with the module that emitted it.
func (l *Logger) Warn(mod any, msg string, args ...any) { l.log(LevelWarn, mod, msg, args...) }

// Error logs an error-level message tagged with the module that emitted it.
func (l *Logger) Error(mod any, msg string, args ...any) { l.log(LevelError, mod, msg, args...) }

// Fatal logs a fatal-level message then exits the process.
func (l *Logger) Fatal(mod any, msg string, args ...any) {
	l.log(LevelFatal, mod, msg, args...)
	os.Exit(1)
}
