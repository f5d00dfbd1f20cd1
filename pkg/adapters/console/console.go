package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goliatone/go-pushrelay/pkg/adapters"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

// Adapter prints notifications to a writer (stdout by default) for headless
// hosts and debugging.
type Adapter struct {
	name string
	base adapters.BaseAdapter
	opts Options

	mu  sync.Mutex
	out io.Writer
}

type Option func(*Adapter)

// Options tweak console output.
type Options struct {
	Structured bool // when true, emit a structured log entry instead of a formatted line
}

// WithName overrides the adapter name (defaults to "console").
func WithName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithStructured enables structured logging mode.
func WithStructured(enabled bool) Option {
	return func(a *Adapter) {
		a.opts.Structured = enabled
	}
}

// WithWriter redirects formatted output.
func WithWriter(w io.Writer) Option {
	return func(a *Adapter) {
		if w != nil {
			a.out = w
		}
	}
}

// New constructs a console adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "console",
		out:  os.Stdout,
	}
	adapter.base = adapters.NewBaseAdapter(l)
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

var _ adapters.Notifier = (*Adapter)(nil)

func (a *Adapter) Name() string {
	return a.name
}

// Show writes the notification.
func (a *Adapter) Show(ctx context.Context, n domain.Notification) error {
	if a.opts.Structured {
		a.base.LogSuccess(a.name, n)
		a.base.Logger().Info("console notification",
			logger.Field{Key: "id", Value: n.ID},
			logger.Field{Key: "title", Value: n.Title},
			logger.Field{Key: "body", Value: n.Body},
			logger.Field{Key: "icon", Value: n.Icon},
		)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := fmt.Fprintf(a.out, "[notification][%s] %s: %s\n", n.ID, n.Title, n.Body); err != nil {
		a.base.LogFailure(a.name, n, err)
		return err
	}
	return nil
}

// Close is a no-op; printed lines cannot be withdrawn.
func (a *Adapter) Close(ctx context.Context, id string) error {
	a.base.Logger().Debug("console notification closed", logger.Field{Key: "id", Value: id})
	return nil
}
