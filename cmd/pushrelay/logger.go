package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

// newLogger picks the backend named by cfg.Format. The pretty handler only
// targets a terminal; other writers get slog text lines.
func newLogger(cfg config.LoggingConfig, w io.Writer) logger.Logger {
	switch cfg.Format {
	case config.LogJSON:
		l := logrus.New()
		l.SetOutput(w)
		l.SetFormatter(&logrus.JSONFormatter{})
		if level, err := logrus.ParseLevel(cfg.Level); err == nil {
			l.SetLevel(level)
		}
		return logger.NewLogrus(l)
	case config.LogText:
		return logger.NewWithWriter(w)
	default:
		if w == os.Stderr || w == os.Stdout {
			return logger.NewPretty("pushrelay", slogLevel(cfg.Level))
		}
		return logger.NewSlog(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(cfg.Level)}))
	}
}

func slogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(raw)))); err != nil {
		return slog.LevelInfo
	}
	return level
}
