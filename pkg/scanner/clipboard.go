package scanner

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

var errClipboardUnsupported = errors.New("scanner: clipboard is not available on this system")

type options struct {
	read          func() (string, error)
	readIsDefault bool
	input         io.Reader
	logger        logger.Logger
}

type Option func(*options)

// WithReader overrides the clipboard reader.
func WithReader(read func() (string, error)) Option {
	return func(o *options) {
		if read != nil {
			o.read = read
			o.readIsDefault = false
		}
	}
}

// WithInput overrides the line source (stdin by default).
func WithInput(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.input = r
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		read:          clipboard.ReadAll,
		readIsDefault: true,
		input:         os.Stdin,
		logger:        &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Clipboard polls the system clipboard at the configured frame rate and
// reports each new non-empty value. Content present at start is ignored.
type Clipboard struct {
	opts options

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ Scanner = (*Clipboard)(nil)

func NewClipboard(opts ...Option) *Clipboard {
	return &Clipboard{opts: buildOptions(opts)}
}

func (c *Clipboard) Start(ctx context.Context, constraint Constraint, settings Settings, onDecoded func(string), onError func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	if clipboard.Unsupported && c.opts.readIsDefault {
		return errClipboardUnsupported
	}
	initial, err := c.opts.read()
	if err != nil {
		return err
	}

	fps := settings.FPS
	if fps <= 0 {
		fps = 10
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.poll(ctx, time.Second/time.Duration(fps), strings.TrimSpace(initial), onDecoded, onError)
	return nil
}

func (c *Clipboard) poll(ctx context.Context, interval time.Duration, last string, onDecoded func(string), onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		text, err := c.opts.read()
		if err != nil {
			c.opts.logger.Warn("clipboard read failed", logger.Field{Key: "error", Value: err})
			if onError != nil {
				onError(err)
			}
			return
		}
		text = strings.TrimSpace(text)
		if text == "" || text == last {
			continue
		}
		last = text
		if onDecoded != nil && ctx.Err() == nil {
			onDecoded(text)
		}
	}
}

// Stop halts polling. It is safe to call from onDecoded.
func (c *Clipboard) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
}
