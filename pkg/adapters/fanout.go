package adapters

import (
	"context"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

// Fanout forwards notifications to multiple downstream notifiers.
type Fanout struct {
	targets []Notifier
}

// NewFanout assembles a notifier that multicasts to the provided targets.
func NewFanout(targets ...Notifier) *Fanout {
	filtered := make([]Notifier, 0, len(targets))
	for _, target := range targets {
		if target != nil {
			filtered = append(filtered, target)
		}
	}
	return &Fanout{targets: filtered}
}

var _ Notifier = (*Fanout)(nil)

func (f *Fanout) Name() string { return "fanout" }

// Show delivers to each target, returning the first error observed.
func (f *Fanout) Show(ctx context.Context, n domain.Notification) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Show(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Fanout) Close(ctx context.Context, id string) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Close(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Func adapts a function to the Notifier interface; Close is a no-op.
type Func func(ctx context.Context, n domain.Notification) error

func (f Func) Name() string { return "func" }

func (f Func) Show(ctx context.Context, n domain.Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

func (f Func) Close(ctx context.Context, id string) error { return nil }
