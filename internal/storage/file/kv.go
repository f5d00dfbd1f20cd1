// Package file persists the key-value store as a single JSON document so
// several processes on one host can share it.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
)

// KVStore reads the document on every access and rewrites it atomically on
// every mutation. Concurrent processes resolve last-writer-wins.
type KVStore struct {
	path   string
	logger logger.Logger

	mu       sync.Mutex
	snapshot map[string]string
}

var (
	_ store.KV      = (*KVStore)(nil)
	_ store.Watcher = (*KVStore)(nil)
)

type Option func(*KVStore)

func WithLogger(l logger.Logger) Option {
	return func(s *KVStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewKVStore creates the parent directory of path when missing.
func NewKVStore(path string, opts ...Option) (*KVStore, error) {
	if path == "" {
		return nil, errors.New("file: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file: create dir: %w", err)
	}
	s := &KVStore{path: path, logger: &logger.Nop{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	s.snapshot = entries
	return s, nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return []byte(value), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.mutate(func(entries map[string]string) {
		entries[key] = string(value)
	})
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.mutate(func(entries map[string]string) {
		delete(entries, key)
	})
}

// Watch reports keys changed by other writers until ctx is cancelled.
func (s *KVStore) Watch(ctx context.Context, fn func(store.Change)) error {
	if fn == nil {
		return errors.New("file: watch callback is required")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("file: watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				for _, key := range s.refresh() {
					fn(store.Change{Key: key})
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("file: watcher error", logger.Field{Key: "error", Value: werr})
			}
		}
	}()
	return nil
}

// refresh reloads the document and returns keys that differ from the last
// snapshot this process observed or wrote.
func (s *KVStore) refresh() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		s.logger.Warn("file: reload failed", logger.Field{Key: "error", Value: err})
		return nil
	}
	changed := diffKeys(s.snapshot, entries)
	s.snapshot = entries
	return changed
}

func (s *KVStore) mutate(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	fn(entries)
	if err := s.write(entries); err != nil {
		return err
	}
	s.snapshot = entries
	return nil
}

func (s *KVStore) read() (map[string]string, error) {
	entries := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read: %w", err)
	}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("file: decode: %w", err)
	}
	return entries, nil
}

func (s *KVStore) write(entries map[string]string) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".kv-*")
	if err != nil {
		return fmt.Errorf("file: temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file: rename: %w", err)
	}
	return nil
}

func diffKeys(before, after map[string]string) []string {
	var changed []string
	for key, value := range after {
		if prev, ok := before[key]; !ok || prev != value {
			changed = append(changed, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			changed = append(changed, key)
		}
	}
	return changed
}
