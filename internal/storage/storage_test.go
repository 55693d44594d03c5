package storage

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trixerrors "trix/internal/errors"
)

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type testRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r testRecord) Key() string { return r.ID }

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalog[testRecord](db, "thing")

	t.Run("PutIfAbsent and Get", func(t *testing.T) {
		stored, err := catalog.PutIfAbsent(testRecord{ID: "a1", Name: "first"})
		require.NoError(t, err)
		assert.True(t, stored)

		got, err := catalog.Get("a1")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
	})

	t.Run("existing records are kept", func(t *testing.T) {
		stored, err := catalog.PutIfAbsent(testRecord{ID: "a1", Name: "second"})
		require.NoError(t, err)
		assert.False(t, stored)

		got, err := catalog.Get("a1")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := catalog.PutIfAbsent(testRecord{})
		assert.True(t, stderrors.Is(err, trixerrors.ErrValidation))
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := catalog.Get("nope")
		assert.True(t, stderrors.Is(err, trixerrors.ErrNotFound))
	})

	t.Run("Has", func(t *testing.T) {
		ok, err := catalog.Has("a1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = catalog.Has("zz")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("All and prefix scan", func(t *testing.T) {
		for _, rec := range []testRecord{{ID: "b1", Name: "b"}, {ID: "a2", Name: "other"}} {
			_, err := catalog.PutIfAbsent(rec)
			require.NoError(t, err)
		}

		all, err := catalog.All()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a1", "a2", "b1"}, []string{all[0].ID, all[1].ID, all[2].ID})

		keys, err := catalog.KeysWithPrefix("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, keys)

		keys, err = catalog.KeysWithPrefix("c")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		other := NewCatalog[testRecord](db, "thin")
		all, err := other.All()
		require.NoError(t, err)
		assert.Empty(t, all)

		ok, err := other.Has("a1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSafeWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "HEAD")

	require.NoError(t, SafeWrite(path, []byte("one"), 0644))
	require.NoError(t, SafeWrite(path, []byte("two"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCreateExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	require.NoError(t, CreateExclusive(path, []byte("[]"), 0644))
	err := CreateExclusive(path, []byte("[{}]"), 0644)
	assert.True(t, os.IsExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
