package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("store: not found")

// KV is the durable key-value contract shared by foreground and background
// contexts. Values are opaque JSON documents.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Change reports that a key was modified outside the current process.
type Change struct {
	Key string
}

// Watcher is implemented by backends able to observe external writes.
type Watcher interface {
	Watch(ctx context.Context, fn func(Change)) error
}

// Closer is implemented by backends holding connections or file handles.
type Closer interface {
	Close() error
}
