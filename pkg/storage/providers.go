package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	bunrepo "github.com/goliatone/go-pushrelay/internal/storage/bun"
	filestore "github.com/goliatone/go-pushrelay/internal/storage/file"
	"github.com/goliatone/go-pushrelay/internal/storage/memory"
	redisstore "github.com/goliatone/go-pushrelay/internal/storage/redis"
	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/goliatone/go-pushrelay/pkg/secrets"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Providers exposes the key-value store shared by the daemon and the UI.
type Providers struct {
	KV store.KV
	// Watcher is nil when the backend cannot report changes from other processes.
	Watcher store.Watcher
	closers []store.Closer
}

// Close releases backend resources.
func (p Providers) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewMemoryProviders returns a process-local store.
func NewMemoryProviders() Providers {
	return Providers{KV: memory.NewKVStore()}
}

// NewBunProviders wires the Bun-backed store. The caller owns db.
func NewBunProviders(ctx context.Context, db *bun.DB) (Providers, error) {
	if db == nil {
		return Providers{}, fmt.Errorf("storage: bun DB is required")
	}
	persistence.RegisterModel((*domain.KVEntry)(nil))
	if err := bunrepo.EnsureSchema(ctx, db); err != nil {
		return Providers{}, err
	}
	return Providers{KV: bunrepo.NewKVRepository(db)}, nil
}

// Open builds providers for cfg.Driver, sealing subscription keys when an
// encryption key is configured.
func Open(ctx context.Context, cfg config.StoreConfig, lgr logger.Logger) (Providers, error) {
	if lgr == nil {
		lgr = &logger.Nop{}
	}
	var (
		providers Providers
		err       error
	)
	switch cfg.Driver {
	case config.StoreMemory:
		providers = NewMemoryProviders()
	case config.StoreFile, "":
		var kv *filestore.KVStore
		kv, err = filestore.NewKVStore(cfg.Path, filestore.WithLogger(lgr))
		providers = Providers{KV: kv, Watcher: kv}
	case config.StoreSQLite:
		providers, err = openSQLite(ctx, cfg.DSN, lgr)
	case config.StoreRedis:
		var kv *redisstore.KVStore
		kv, err = redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redisstore.WithPrefix(cfg.RedisPrefix), redisstore.WithLogger(lgr))
		if err == nil {
			providers = Providers{KV: kv, Watcher: kv, closers: []store.Closer{kv}}
		}
	default:
		err = fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return Providers{}, err
	}

	if cfg.EncryptionKey != "" {
		key, err := secrets.ParseKey(cfg.EncryptionKey)
		if err != nil {
			providers.Close()
			return Providers{}, err
		}
		sealed, err := secrets.NewSealedKV(providers.KV, key)
		if err != nil {
			providers.Close()
			return Providers{}, err
		}
		providers.KV = sealed
	}
	lgr.Debug("store opened", logger.Field{Key: "driver", Value: cfg.Driver})
	return providers, nil
}

func openSQLite(ctx context.Context, dsn string, lgr logger.Logger) (Providers, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return Providers{}, fmt.Errorf("storage: store.dsn is required for sqlite")
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return Providers{}, err
	}
	sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
	if err != nil {
		return Providers{}, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	providers, err := NewBunProviders(ctx, db)
	if err != nil {
		db.Close()
		return Providers{}, err
	}
	providers.closers = append(providers.closers, db)
	lgr.Debug("sqlite store ready", logger.Field{Key: "dsn", Value: dsn})
	return providers, nil
}

func ensureSQLiteDir(dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
