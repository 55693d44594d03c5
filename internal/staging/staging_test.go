package staging

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
)

func setupTestArea(t *testing.T) *Area {
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))
	return NewArea(path)
}

func TestArea(t *testing.T) {
	hello := safe.HashContent([]byte("hello"))
	world := safe.HashContent([]byte("world"))

	t.Run("starts empty", func(t *testing.T) {
		a := setupTestArea(t)

		entries, err := a.Snapshot()
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})

	t.Run("stage appends", func(t *testing.T) {
		a := setupTestArea(t)

		require.NoError(t, a.Stage("a.txt", hello))
		entries, err := a.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, Entry{Path: "a.txt", Hash: hello}, entries[len(entries)-1])

		require.NoError(t, a.Stage("b.txt", world))
		entries, err = a.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Path: "a.txt", Hash: hello},
			{Path: "b.txt", Hash: world},
		}, entries)
	})

	t.Run("same path twice keeps both", func(t *testing.T) {
		a := setupTestArea(t)

		require.NoError(t, a.Stage("a.txt", hello))
		require.NoError(t, a.Stage("a.txt", world))

		n, err := a.Len()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("clear", func(t *testing.T) {
		a := setupTestArea(t)
		require.NoError(t, a.Stage("a.txt", hello))

		require.NoError(t, a.Clear())
		entries, err := a.Snapshot()
		require.NoError(t, err)
		assert.Empty(t, entries)

		data, err := os.ReadFile(a.Path())
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})

	t.Run("persists across instances", func(t *testing.T) {
		a := setupTestArea(t)
		require.NoError(t, a.Stage("a.txt", hello))

		entries, err := NewArea(a.Path()).Snapshot()
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		a := setupTestArea(t)

		assert.True(t, stderrors.Is(a.Stage("", hello), trixerrors.ErrValidation))
		assert.True(t, stderrors.Is(a.Stage("a.txt", "abc"), trixerrors.ErrValidation))
	})

	t.Run("rejects paths that are not UTF-8", func(t *testing.T) {
		a := setupTestArea(t)

		err := a.Stage("a\xff.txt", hello)
		assert.True(t, stderrors.Is(err, trixerrors.ErrValidation), "got %v", err)

		entries, err := a.Snapshot()
		require.NoError(t, err)
		assert.Empty(t, entries)

		require.NoError(t, a.Stage("caf\u00e9.txt", hello))
		entries, err = a.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, []Entry{{Path: "caf\u00e9.txt", Hash: hello}}, entries)
	})

	t.Run("missing index", func(t *testing.T) {
		a := NewArea(filepath.Join(t.TempDir(), "index"))

		_, err := a.Snapshot()
		assert.True(t, stderrors.Is(err, trixerrors.ErrNotFound))
	})

	t.Run("corrupt index", func(t *testing.T) {
		a := setupTestArea(t)
		require.NoError(t, os.WriteFile(a.Path(), []byte("{not json"), 0644))

		_, err := a.Snapshot()
		assert.True(t, stderrors.Is(err, trixerrors.ErrCorruptData))
	})
}
