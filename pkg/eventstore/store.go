// Package eventstore keeps the foreground list of relayed push events,
// most recent first, mirrored to the durable key-value store.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/goliatone/go-pushrelay/pkg/retry"
	"github.com/google/uuid"
)

// Source delivers relayed messages to a foreground context.
type Source interface {
	Subscribe(fn func(domain.RelayMessage)) (unsubscribe func())
}

// Dependencies wires the backing store into the event store.
type Dependencies struct {
	KV           store.KV
	Logger       logger.Logger
	ClearRetries int
	Backoff      retry.Backoff
	Now          func() time.Time
	NewID        func() string
}

// Store serializes mutations in-process; across processes the last writer wins.
type Store struct {
	kv           store.KV
	logger       logger.Logger
	clearRetries int
	backoff      retry.Backoff
	now          func() time.Time
	newID        func() string

	mu      sync.Mutex
	items   []domain.EventItem
	version uint64

	// deliverMu orders listener calls; delivered is the newest version sent.
	deliverMu sync.Mutex
	delivered uint64

	listenersMu sync.RWMutex
	listeners   map[int]func([]domain.EventItem)
	nextID      int
}

var errKVRequired = errors.New("eventstore: kv store is required")

// New constructs an empty store; call Load to read persisted events.
func New(deps Dependencies) (*Store, error) {
	if deps.KV == nil {
		return nil, errKVRequired
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.ClearRetries <= 0 {
		deps.ClearRetries = 3
	}
	if deps.Backoff == nil {
		deps.Backoff = retry.DefaultBackoff()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Store{
		kv:           deps.KV,
		logger:       deps.Logger,
		clearRetries: deps.ClearRetries,
		backoff:      deps.Backoff,
		now:          deps.Now,
		newID:        deps.NewID,
		listeners:    make(map[int]func([]domain.EventItem)),
	}, nil
}

// Load replaces the in-memory sequence with the persisted one. An absent key
// is an empty list.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	items, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = items
	version, snapshot := s.bump()
	s.mu.Unlock()

	s.notify(version, snapshot)
	return nil
}

// Items returns a snapshot, most recent first.
func (s *Store) Items() []domain.EventItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Append prepends a new event and persists the full sequence. Memory only
// changes once the write succeeded.
func (s *Store) Append(ctx context.Context, text string) (domain.EventItem, error) {
	item := domain.EventItem{
		ID:        s.newID(),
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	}

	s.mu.Lock()
	next := make([]domain.EventItem, 0, len(s.items)+1)
	next = append(next, item)
	next = append(next, s.items...)
	if err := s.write(ctx, next); err != nil {
		s.mu.Unlock()
		return domain.EventItem{}, err
	}
	s.items = next
	version, snapshot := s.bump()
	s.mu.Unlock()

	s.notify(version, snapshot)
	return item, nil
}

// Clear removes the persisted key, retrying with backoff, then empties memory.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := retry.Do(ctx, s.clearRetries, s.backoff, func(ctx context.Context) error {
		if err := s.kv.Delete(ctx, domain.KeyEvents); err != nil {
			s.logger.Warn("clear events failed", logger.Field{Key: "error", Value: err})
			return err
		}
		return nil
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("eventstore: clear: %w", err)
	}
	s.items = nil
	version, snapshot := s.bump()
	s.mu.Unlock()

	s.notify(version, snapshot)
	return nil
}

// Subscribe appends every push-notification message from source until the
// returned function is called.
func (s *Store) Subscribe(ctx context.Context, source Source) (unsubscribe func()) {
	return source.Subscribe(func(msg domain.RelayMessage) {
		if msg.Type != domain.MessageTypePushNotification {
			return
		}
		if _, err := s.Append(ctx, msg.Text); err != nil {
			s.logger.Error("append relayed event failed", logger.Field{Key: "error", Value: err})
		}
	})
}

// Watch reloads when another process changes the persisted list.
func (s *Store) Watch(ctx context.Context, w store.Watcher) error {
	return w.Watch(ctx, func(c store.Change) {
		if c.Key != domain.KeyEvents {
			return
		}
		if err := s.Load(ctx); err != nil {
			s.logger.Warn("reload events failed", logger.Field{Key: "error", Value: err})
		}
	})
}

// OnChange registers fn to receive a snapshot after every mutation or reload.
// Snapshots arrive in mutation order; one superseded before delivery is
// skipped. fn must not mutate the store.
func (s *Store) OnChange(fn func([]domain.EventItem)) (remove func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// bump must be called with s.mu held.
func (s *Store) bump() (uint64, []domain.EventItem) {
	s.version++
	return s.version, cloneItems(s.items)
}

func (s *Store) notify(version uint64, items []domain.EventItem) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version

	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn(cloneItems(items))
	}
}

func (s *Store) read(ctx context.Context) ([]domain.EventItem, error) {
	raw, err := s.kv.Get(ctx, domain.KeyEvents)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventstore: read: %w", err)
	}
	var items []domain.EventItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("eventstore: decode: %w", err)
	}
	return items, nil
}

func (s *Store) write(ctx context.Context, items []domain.EventItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("eventstore: encode: %w", err)
	}
	if err := s.kv.Set(ctx, domain.KeyEvents, raw); err != nil {
		return fmt.Errorf("eventstore: write: %w", err)
	}
	return nil
}

func cloneItems(items []domain.EventItem) []domain.EventItem {
	if len(items) == 0 {
		return []domain.EventItem{}
	}
	return append([]domain.EventItem(nil), items...)
}
