package bunrepo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.DriverName(), "file::memory:?cache=shared")
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(context.Background(), db))
	_, err = db.NewDelete().TableExpr("pushrelay_kv_entries").Where("1 = 1").Exec(context.Background())
	require.NoError(t, err)
	return db
}

func TestKVRepositoryBun(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(setupSQLiteDB(t))

	_, err := repo.Get(ctx, "events")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "events", []byte(`[{"id":"a"}]`)))
	got, err := repo.Get(ctx, "events")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(got))

	require.NoError(t, repo.Set(ctx, "events", []byte(`[]`)))
	got, err = repo.Get(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, repo.Delete(ctx, "events"))
	_, err = repo.Get(ctx, "events")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestKVRepositoryDeleteMissingKey(t *testing.T) {
	repo := NewKVRepository(setupSQLiteDB(t))
	assert.NoError(t, repo.Delete(context.Background(), "missing"))
}
