package file

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "kv.json")

	first, err := NewKVStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "events", []byte(`[{"id":"a"}]`)))

	second, err := NewKVStore(path)
	require.NoError(t, err)
	got, err := second.Get(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(got))

	require.NoError(t, second.Delete(ctx, "events"))
	_, err = first.Get(ctx, "events")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestKVStoreWatchReportsExternalWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "kv.json")

	watched, err := NewKVStore(path)
	require.NoError(t, err)
	writer, err := NewKVStore(path)
	require.NoError(t, err)

	changes := make(chan store.Change, 8)
	require.NoError(t, watched.Watch(ctx, func(c store.Change) { changes <- c }))

	require.NoError(t, writer.Set(ctx, "events", []byte(`[]`)))

	select {
	case c := <-changes:
		assert.Equal(t, "events", c.Key)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestDiffKeys(t *testing.T) {
	changed := diffKeys(
		map[string]string{"a": "1", "b": "2", "c": "3"},
		map[string]string{"a": "1", "b": "9", "d": "4"},
	)
	sort.Strings(changed)
	assert.Equal(t, []string{"b", "c", "d"}, changed)
}
