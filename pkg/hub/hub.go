// Package hub is the registry of connected foreground contexts. In-process
// contexts attach with Connect; other processes attach over a WebSocket.
package hub

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/relay"
	"github.com/google/uuid"
)

// Launcher opens a new foreground context at url.
type Launcher func(url string) error

// ErrNoLauncher is returned by OpenWindow when no launcher is configured.
var ErrNoLauncher = errors.New("hub: no launcher configured")

// member is a registered foreground context.
type member interface {
	relay.Client
	connectedAt() time.Time
}

type entry struct {
	member
	seq uint64
}

// Hub tracks foreground contexts in connection order.
type Hub struct {
	mu        sync.RWMutex
	members   map[string]entry
	nextSeq   uint64
	launcher  Launcher
	publicURL string
	logger    logger.Logger
	now       func() time.Time
}

var _ relay.Contexts = (*Hub)(nil)

type Option func(*Hub)

// WithLauncher sets how new contexts are opened; publicURL prefixes routes.
func WithLauncher(publicURL string, l Launcher) Option {
	return func(h *Hub) {
		h.publicURL = strings.TrimRight(publicURL, "/")
		h.launcher = l
	}
}

func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		members: make(map[string]entry),
		logger:  &logger.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Clients returns the connected contexts, earliest connection first.
// Contexts sharing a connection time keep registration order.
func (h *Hub) Clients(ctx context.Context) ([]relay.Client, error) {
	h.mu.RLock()
	members := make([]entry, 0, len(h.members))
	for _, m := range h.members {
		members = append(members, m)
	}
	h.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		a, b := members[i].connectedAt(), members[j].connectedAt()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return members[i].seq < members[j].seq
	})
	out := make([]relay.Client, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out, nil
}

// Len reports how many contexts are connected.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// OpenWindow launches a new foreground context at route.
func (h *Hub) OpenWindow(ctx context.Context, route string) error {
	if h.launcher == nil {
		return ErrNoLauncher
	}
	target := h.publicURL + route
	h.logger.Info("opening foreground context", logger.Field{Key: "url", Value: target})
	return h.launcher(target)
}

// Connect registers an in-process foreground context.
func (h *Hub) Connect() *Conn {
	c := &Conn{
		hub:       h,
		id:        uuid.NewString(),
		connected: h.now(),
		handlers:  make(map[int]func(domain.RelayMessage)),
	}
	h.register(c)
	return c
}

func (h *Hub) register(m member) {
	h.mu.Lock()
	h.nextSeq++
	h.members[m.ID()] = entry{member: m, seq: h.nextSeq}
	h.mu.Unlock()
	h.logger.Debug("foreground context connected", logger.Field{Key: "id", Value: m.ID()})
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.members, id)
	h.mu.Unlock()
	h.logger.Debug("foreground context disconnected", logger.Field{Key: "id", Value: id})
}

// Conn is an in-process foreground context.
type Conn struct {
	hub       *Hub
	id        string
	connected time.Time

	mu       sync.Mutex
	handlers map[int]func(domain.RelayMessage)
	nextID   int
	focused  time.Time
	onFocus  func()
	closed   bool
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) connectedAt() time.Time { return c.connected }

// PostMessage delivers msg to every subscribed handler.
func (c *Conn) PostMessage(ctx context.Context, msg domain.RelayMessage) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("hub: context closed")
	}
	handlers := make([]func(domain.RelayMessage), 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(msg)
	}
	return nil
}

// Subscribe registers fn for relayed messages until the returned func runs.
func (c *Conn) Subscribe(fn func(domain.RelayMessage)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// OnFocus sets the callback run when the relay focuses this context.
func (c *Conn) OnFocus(fn func()) {
	c.mu.Lock()
	c.onFocus = fn
	c.mu.Unlock()
}

// Focus brings the context to the front.
func (c *Conn) Focus(ctx context.Context) error {
	c.MarkFocused()
	c.mu.Lock()
	fn := c.onFocus
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// MarkFocused records user focus on this context.
func (c *Conn) MarkFocused() {
	c.mu.Lock()
	c.focused = c.hub.now()
	c.mu.Unlock()
}

func (c *Conn) LastFocused() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focused
}

// Close unregisters the context.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.handlers = map[int]func(domain.RelayMessage){}
	c.mu.Unlock()
	c.hub.unregister(c.id)
}
