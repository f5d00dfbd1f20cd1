package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/secrets"
)

func TestOpenMemoryHasNoWatcher(t *testing.T) {
	p, err := Open(context.Background(), config.StoreConfig{Driver: config.StoreMemory}, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.NotNil(t, p.KV)
	assert.Nil(t, p.Watcher)
}

func TestOpenFileSharesStateAcrossProviders(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{Driver: config.StoreFile, Path: filepath.Join(t.TempDir(), "state", "kv.json")}

	first, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer first.Close()
	require.NotNil(t, first.Watcher)
	require.NoError(t, first.KV.Set(ctx, domain.KeyPermission, []byte("granted")))

	second, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.KV.Get(ctx, domain.KeyPermission)
	require.NoError(t, err)
	assert.Equal(t, "granted", string(got))
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "nested", "kv.db")

	p, err := Open(ctx, config.StoreConfig{Driver: config.StoreSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.KV.Set(ctx, domain.KeyEvents, []byte(`[]`)))
	got, err := p.KV.Get(ctx, domain.KeyEvents)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestOpenSealsWithEncryptionKey(t *testing.T) {
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	p, err := Open(ctx, config.StoreConfig{Driver: config.StoreMemory, EncryptionKey: key}, nil)
	require.NoError(t, err)
	defer p.Close()

	sealed, ok := p.KV.(*secrets.SealedKV)
	require.True(t, ok, "expected sealed store, got %T", p.KV)
	require.NoError(t, p.KV.Set(ctx, domain.KeySubscription, []byte(`{"endpoint":"e"}`)))

	raw, err := sealed.Unwrap().Get(ctx, domain.KeySubscription)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "endpoint")
}

func TestOpenRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, config.StoreConfig{Driver: "etcd"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, config.StoreConfig{Driver: config.StoreMemory, EncryptionKey: "short"}, nil)
	assert.Error(t, err)
}

func TestEnsureSQLiteDirIgnoresMemory(t *testing.T) {
	assert.NoError(t, ensureSQLiteDir("file::memory:?cache=shared"))
	assert.NoError(t, ensureSQLiteDir(":memory:"))
}
