package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/google/uuid"
)

// Control frames exchanged besides relayed messages.
const (
	frameFocus   = "focus"   // hub -> context: bring yourself to the front
	frameFocused = "focused" // context -> hub: the user focused me
)

type frame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// remote is a foreground context in another process.
type remote struct {
	conn      *websocket.Conn
	id        string
	connected time.Time
	now       func() time.Time

	mu      sync.Mutex
	focused time.Time
}

func (r *remote) ID() string { return r.id }

func (r *remote) connectedAt() time.Time { return r.connected }

func (r *remote) PostMessage(ctx context.Context, msg domain.RelayMessage) error {
	return writeFrame(ctx, r.conn, frame{Type: msg.Type, Text: msg.Text})
}

func (r *remote) Focus(ctx context.Context) error {
	r.markFocused()
	return writeFrame(ctx, r.conn, frame{Type: frameFocus})
}

func (r *remote) LastFocused() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

func (r *remote) markFocused() {
	r.mu.Lock()
	r.focused = r.now()
	r.mu.Unlock()
}

// ServeHTTP serves the WebSocket endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) { h.ServeWS(w, req) }

// ServeWS upgrades the request and registers the peer until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", logger.Field{Key: "error", Value: err})
		return
	}
	peer := &remote{conn: conn, id: uuid.NewString(), connected: h.now(), now: h.now}
	h.register(peer)
	defer func() {
		h.unregister(peer.id)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := req.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			h.logger.Warn("bad frame from foreground context", logger.Field{Key: "id", Value: peer.id}, logger.Field{Key: "error", Value: err})
			continue
		}
		if f.Type == frameFocused {
			peer.markFocused()
		}
	}
}

// Remote is the foreground side of a WebSocket attachment. It satisfies the
// event store's message source.
type Remote struct {
	conn   *websocket.Conn
	logger logger.Logger

	mu       sync.Mutex
	handlers map[int]func(domain.RelayMessage)
	nextID   int
	onFocus  func()
	done     chan struct{}
	err      error
}

// Dial attaches to a hub at url (ws:// or wss://) and starts reading.
func Dial(ctx context.Context, url string, l logger.Logger) (*Remote, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("hub: dial %s: %w", url, err)
	}
	if l == nil {
		l = &logger.Nop{}
	}
	r := &Remote{
		conn:     conn,
		logger:   l,
		handlers: make(map[int]func(domain.RelayMessage)),
		done:     make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Remote) Subscribe(fn func(domain.RelayMessage)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.handlers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

// OnFocus sets the callback run when the relay asks this context to focus.
func (r *Remote) OnFocus(fn func()) {
	r.mu.Lock()
	r.onFocus = fn
	r.mu.Unlock()
}

// Focused tells the hub the user focused this context.
func (r *Remote) Focused(ctx context.Context) error {
	return writeFrame(ctx, r.conn, frame{Type: frameFocused})
}

// Done is closed when the connection ends.
func (r *Remote) Done() <-chan struct{} { return r.done }

// Err reports why the connection ended.
func (r *Remote) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Remote) Close() error {
	return r.conn.Close(websocket.StatusNormalClosure, "")
}

func (r *Remote) readLoop() {
	defer close(r.done)
	ctx := context.Background()
	for {
		_, data, err := r.conn.Read(ctx)
		if err != nil {
			r.mu.Lock()
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				r.err = err
			}
			r.mu.Unlock()
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			r.logger.Warn("bad frame from hub", logger.Field{Key: "error", Value: err})
			continue
		}
		r.dispatch(f)
	}
}

func (r *Remote) dispatch(f frame) {
	r.mu.Lock()
	if f.Type == frameFocus {
		fn := r.onFocus
		r.mu.Unlock()
		if fn != nil {
			fn()
		}
		return
	}
	handlers := make([]func(domain.RelayMessage), 0, len(r.handlers))
	for _, fn := range r.handlers {
		handlers = append(handlers, fn)
	}
	r.mu.Unlock()

	msg := domain.RelayMessage{Type: f.Type, Text: f.Text}
	for _, fn := range handlers {
		fn(msg)
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("hub: write frame: %w", err)
	}
	return nil
}
