package bunrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// KVRepository stores key-value entries in a single table.
type KVRepository struct {
	base baseRepository[domain.KVEntry]
}

var _ store.KV = (*KVRepository)(nil)

func NewKVRepository(db *bun.DB) *KVRepository {
	handlers := repository.ModelHandlers[*domain.KVEntry]{
		NewRecord:          func() *domain.KVEntry { return &domain.KVEntry{} },
		GetID:              func(e *domain.KVEntry) uuid.UUID { return e.ID },
		SetID:              func(e *domain.KVEntry, id uuid.UUID) { e.ID = id },
		GetIdentifier:      func() string { return "key" },
		GetIdentifierValue: func(e *domain.KVEntry) string { return e.Key },
	}
	return &KVRepository{
		base: newBaseRepository[domain.KVEntry](db, handlers, func(e *domain.KVEntry) *domain.RecordMeta { return &e.RecordMeta }),
	}
}

// EnsureSchema creates the backing table when missing.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*domain.KVEntry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("bunrepo: create kv table: %w", err)
	}
	return nil
}

func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := r.base.get(ctx, withKey(key))
	if err != nil {
		return nil, err
	}
	return []byte(entry.Value), nil
}

// Set upserts the entry. Concurrent writers from other processes resolve
// last-writer-wins.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	entry, err := r.base.get(ctx, withKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return r.base.create(ctx, &domain.KVEntry{Key: key, Value: string(value)})
	}
	if err != nil {
		return err
	}
	entry.Value = string(value)
	return r.base.update(ctx, entry)
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	_, err := r.base.db.
		NewDelete().
		Model((*domain.KVEntry)(nil)).
		Where("? = ?", bun.Ident("key"), key).
		Exec(ctx)
	return mapError(err)
}
