package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogLevel is the severity of a log line
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps "debug", "info", "warn" or "error" to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the structured logger used by the store
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	// With returns a logger that prepends keyvals to every line
	With(keyvals ...any) Logger
}

// textLogger writes "time [LEVEL] k=v ...: msg" lines
type textLogger struct {
	mu       *sync.Mutex
	w        io.Writer
	minLevel LogLevel
	keyvals  []any
}

// NewLogger creates a logger that writes lines at or above minLevel to w
func NewLogger(w io.Writer, minLevel LogLevel) Logger {
	return &textLogger{mu: &sync.Mutex{}, w: w, minLevel: minLevel}
}

func (l *textLogger) Debug(msg string, keyvals ...any) { l.log(LevelDebug, msg, keyvals) }
func (l *textLogger) Info(msg string, keyvals ...any)  { l.log(LevelInfo, msg, keyvals) }
func (l *textLogger) Warn(msg string, keyvals ...any)  { l.log(LevelWarn, msg, keyvals) }
func (l *textLogger) Error(msg string, keyvals ...any) { l.log(LevelError, msg, keyvals) }

func (l *textLogger) With(keyvals ...any) Logger {
	kv := make([]any, 0, len(l.keyvals)+len(keyvals))
	kv = append(kv, l.keyvals...)
	kv = append(kv, keyvals...)
	return &textLogger{mu: l.mu, w: l.w, minLevel: l.minLevel, keyvals: kv}
}

func (l *textLogger) log(level LogLevel, msg string, keyvals []any) {
	if level < l.minLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", time.Now().Format("2006-01-02 15:04:05.000"), level)
	writePairs(&b, l.keyvals)
	writePairs(&b, keyvals)
	fmt.Fprintf(&b, ": %s\n", msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, b.String())
}

func writePairs(b *strings.Builder, keyvals []any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(b, " %v=%v", keyvals[i], keyvals[i+1])
	}
}

// slogLogger adapts a *slog.Logger
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts l to the Logger interface
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, keyvals ...any) { s.l.Log(context.Background(), slog.LevelDebug, msg, keyvals...) }
func (s slogLogger) Info(msg string, keyvals ...any)  { s.l.Log(context.Background(), slog.LevelInfo, msg, keyvals...) }
func (s slogLogger) Warn(msg string, keyvals ...any)  { s.l.Log(context.Background(), slog.LevelWarn, msg, keyvals...) }
func (s slogLogger) Error(msg string, keyvals ...any) { s.l.Log(context.Background(), slog.LevelError, msg, keyvals...) }
func (s slogLogger) With(keyvals ...any) Logger       { return slogLogger{l: s.l.With(keyvals...)} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }

// NopLogger returns a logger that discards everything
func NopLogger() Logger {
	return nopLogger{}
}
