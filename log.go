package servicegraph

import (
	"context"
	"log/slog"
)

// Logger is a simple logger interface accepting key-value pair parameters.
type Logger interface {
	// Logs an info message.
	Info(msg string, keysAndValues ...interface{})
	// Logs an error.
	Error(err error, msg string, keysAndValues ...interface{})
}

// SlogLogger adapts a structured logger from the standard library. A nil
// logger uses slog.Default.
func SlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Info(msg, keysAndValues...)
}

func (s slogLogger) Error(err error, msg string,
	keysAndValues ...interface{}) {
	s.l.Log(context.Background(), slog.LevelError, msg,
		append(keysAndValues, "error", err)...)
}
