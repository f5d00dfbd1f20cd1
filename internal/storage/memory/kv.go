package memory

import (
	"context"
	"sync"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
)

// KVStore keeps entries in a process-local map.
type KVStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ store.KV = (*KVStore)(nil)

func NewKVStore() *KVStore {
	return &KVStore{entries: make(map[string][]byte)}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = append([]byte(nil), value...)
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
