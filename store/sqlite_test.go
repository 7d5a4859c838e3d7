package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, withCache bool) *SQLite {
	t.Helper()

	var cache *Cache
	if withCache {
		c, err := NewCache(0, time.Minute)
		require.NoError(t, err)
		cache = c
	}

	db, err := NewSQLite(filepath.Join(t.TempDir(), "local.db"), cache)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLitePutGetDelete(t *testing.T) {
	t.Parallel()

	for _, withCache := range []bool{false, true} {
		db := newTestSQLite(t, withCache)

		_, ok, err := db.Get("missing")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, db.Put("a", Entry{Value: []byte(`{"n":1}`), UpdatedAt: 10}))
		got, ok, err := db.Get("a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"n":1}`, string(got.Value))
		assert.Equal(t, int64(10), got.UpdatedAt)

		require.NoError(t, db.Put("a", Entry{Value: []byte(`{"n":2}`), UpdatedAt: 20}))
		got, ok, err = db.Get("a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"n":2}`, string(got.Value))
		assert.Equal(t, int64(20), got.UpdatedAt)

		require.NoError(t, db.Delete("a"))
		_, ok, err = db.Get("a")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestSQLiteCacheNeverKeepsReplacedRow(t *testing.T) {
	t.Parallel()

	db := newTestSQLite(t, true)
	require.NoError(t, db.Put("k", Entry{Value: []byte(`{"n":0}`), UpdatedAt: 0}))

	for i := int64(1); i <= 200; i++ {
		db.cache.Del("k")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = db.Get("k")
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, db.Put("k", Entry{Value: []byte(fmt.Sprintf(`{"n":%d}`, i)), UpdatedAt: i}))
		}()
		wg.Wait()

		got, ok, err := db.Get("k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, got.UpdatedAt, "round %d", i)
	}
}

func TestSQLiteKeysByPrefix(t *testing.T) {
	t.Parallel()

	db := newTestSQLite(t, false)
	for _, k := range []string{"tb:bob:stocks:data", "tb:alice:futures:data", "tb:account:alice", "other:x"} {
		require.NoError(t, db.Put(k, Entry{Value: []byte(`{}`)}))
	}

	keys, err := db.Keys("tb:")
	require.NoError(t, err)
	assert.Equal(t, []string{"tb:account:alice", "tb:alice:futures:data", "tb:bob:stocks:data"}, keys)

	keys, err = db.Keys("nope")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "local.db")
	db, err := NewSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Put("k", Entry{Value: []byte(`"v"`), UpdatedAt: 7}))
	require.NoError(t, db.Close())

	db, err = NewSQLite(path, nil)
	require.NoError(t, err)
	defer db.Close()

	got, ok, err := db.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.UpdatedAt)
}
