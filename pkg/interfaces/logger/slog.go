package logger

import (
	"context"
	"log/slog"

	"github.com/dikkadev/prettyslog"
)

// SlogLogger forwards to a slog.Logger.
type SlogLogger struct {
	l *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlog wraps a slog handler.
func NewSlog(h slog.Handler) *SlogLogger {
	if h == nil {
		return &SlogLogger{l: slog.Default()}
	}
	return &SlogLogger{l: slog.New(h)}
}

// NewPretty builds a colourised console logger via prettyslog.
func NewPretty(group string, level slog.Level) *SlogLogger {
	return NewSlog(prettyslog.NewPrettyslogHandler(group, prettyslog.WithLevel(level)))
}

func (s *SlogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	return &SlogLogger{l: s.l.With(toAttrs(fields)...)}
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	s.l.Log(context.Background(), level, msg, toAttrs(fields)...)
}

func toAttrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
