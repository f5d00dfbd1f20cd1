// Package activity records workflow milestones (permission, registration,
// forget) for audit sinks.
package activity

import (
	"context"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

const (
	VerbPermissionGranted = "permission.granted"
	VerbPermissionDenied  = "permission.denied"
	VerbRegistered        = "registration.created"
	VerbRegistrationError = "registration.failed"
	VerbForgotten         = "registration.forgotten"
)

// Event captures a workflow milestone.
type Event struct {
	Verb       string
	Object     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Hook observers receive activity events.
type Hook interface {
	Notify(ctx context.Context, evt Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, evt Event)

func (f HookFunc) Notify(ctx context.Context, evt Event) { f(ctx, evt) }

// Hooks fans an event out to every hook, skipping nil entries.
type Hooks []Hook

func (h Hooks) Notify(ctx context.Context, evt Event) {
	if len(h) == 0 {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	for _, hook := range h {
		if hook == nil {
			continue
		}
		hook.Notify(ctx, CloneEvent(evt))
	}
}

// Nop is a no-op hook useful for defaults.
type Nop struct{}

func (Nop) Notify(_ context.Context, _ Event) {}

// LogHook writes each event to l at info level.
func LogHook(l logger.Logger) Hook {
	if l == nil {
		return Nop{}
	}
	return HookFunc(func(_ context.Context, evt Event) {
		fields := []logger.Field{
			{Key: "verb", Value: evt.Verb},
			{Key: "at", Value: evt.OccurredAt.Format(time.RFC3339)},
		}
		if evt.Object != "" {
			fields = append(fields, logger.Field{Key: "object", Value: evt.Object})
		}
		l.Info("activity", fields...)
	})
}

// CloneEvent copies metadata so hooks can mutate without affecting callers.
func CloneEvent(evt Event) Event {
	if len(evt.Metadata) == 0 {
		evt.Metadata = nil
		return evt
	}
	dst := make(map[string]any, len(evt.Metadata))
	for k, v := range evt.Metadata {
		dst[k] = v
	}
	evt.Metadata = dst
	return evt
}
