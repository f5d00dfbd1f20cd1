package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestBasicLoggerRendersFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With(Field{Key: "component", Value: "relay"})
	l.Info("push received", Field{Key: "contexts", Value: 3})

	got := strings.TrimSpace(buf.String())
	if got != "[INFO] push received component=relay contexts=3" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestBasicLoggerWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf)
	_ = parent.With(Field{Key: "child", Value: true})
	parent.Warn("plain")
	if strings.Contains(buf.String(), "child") {
		t.Fatalf("parent logger picked up child fields: %q", buf.String())
	}
}

func TestLogrusLoggerStringifiesErrors(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	NewLogrus(base).With(Field{Key: "component", Value: "store"}).Error("clear failed", Field{Key: "error", Value: errors.New("disk full")})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["error"] != "disk full" || entry["component"] != "store" || entry["msg"] != "clear failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestSlogLoggerForwardsAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l.With(Field{Key: "component", Value: "hub"}).Debug("client connected", Field{Key: "id", Value: "c1"})

	out := buf.String()
	for _, want := range []string{"client connected", "component=hub", "id=c1", "level=DEBUG"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
