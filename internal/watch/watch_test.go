package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trix/internal/safe"
)

type recordingStager struct {
	mu     sync.Mutex
	staged []string
}

func (s *recordingStager) Add(path string) (safe.Hash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.staged = append(s.staged, path)
	s.mu.Unlock()
	return safe.HashContent(data), nil
}

func (s *recordingStager) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.staged...)
}

func setupWatcher(t *testing.T) (*Watcher, *recordingStager, string) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	stager := &recordingStager{}
	w, err := New(root, stager, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, stager, root
}

func write(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestHandleEvent(t *testing.T) {
	w, stager, root := setupWatcher(t)

	a := filepath.Join(root, "a.txt")
	write(t, a, "one")
	ignored := filepath.Join(root, ".trix", "HEAD")
	write(t, ignored, "")
	require.NoError(t, w.Watch())

	t.Run("unchanged content skipped", func(t *testing.T) {
		w.handleEvent(fsnotify.Event{Name: a, Op: fsnotify.Write})
		assert.Empty(t, stager.paths())
	})

	t.Run("changed content staged once", func(t *testing.T) {
		write(t, a, "two")
		w.handleEvent(fsnotify.Event{Name: a, Op: fsnotify.Write})
		w.handleEvent(fsnotify.Event{Name: a, Op: fsnotify.Write})
		assert.Equal(t, []string{a}, stager.paths())
	})

	t.Run("new file staged", func(t *testing.T) {
		b := filepath.Join(root, "sub", "b.txt")
		write(t, b, "b")
		w.handleEvent(fsnotify.Event{Name: b, Op: fsnotify.Create})
		assert.Contains(t, stager.paths(), b)
	})

	t.Run("ignored directories", func(t *testing.T) {
		before := len(stager.paths())
		write(t, ignored, "changed")
		w.handleEvent(fsnotify.Event{Name: ignored, Op: fsnotify.Write})
		assert.Len(t, stager.paths(), before)
	})

	t.Run("remove and chmod ignored", func(t *testing.T) {
		before := len(stager.paths())
		write(t, a, "three")
		w.handleEvent(fsnotify.Event{Name: a, Op: fsnotify.Chmod})
		w.handleEvent(fsnotify.Event{Name: a, Op: fsnotify.Remove})
		assert.Len(t, stager.paths(), before)
	})

	t.Run("vanished file", func(t *testing.T) {
		before := len(stager.paths())
		w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "gone.txt"), Op: fsnotify.Create})
		assert.Len(t, stager.paths(), before)
	})
}

func TestWatchSingleFile(t *testing.T) {
	w, stager, root := setupWatcher(t)

	a := filepath.Join(root, "a.txt")
	other := filepath.Join(root, "other.txt")
	write(t, a, "a")
	write(t, other, "o")
	require.NoError(t, w.Watch(a))

	write(t, other, "o2")
	w.handleEvent(fsnotify.Event{Name: other, Op: fsnotify.Write})
	assert.Empty(t, stager.paths())

	write(t, a, "a2")
	w.handleEvent(fsnotify.Event{Name: a, Op: fsnotify.Write})
	assert.Equal(t, []string{a}, stager.paths())
}

func TestRun(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	a := filepath.Join(root, "a.txt")
	write(t, a, "before")

	stager := &recordingStager{}
	staged := make(chan safe.Hash, 10)
	w, err := New(root, stager, Options{
		OnStage: func(_ string, h safe.Hash) { staged <- h },
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	write(t, a, "after")

	// A truncating write may surface an empty intermediate version first.
	want := safe.HashContent([]byte("after"))
	timeout := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case h := <-staged:
			found = h == want
		case <-timeout:
			t.Fatal("timed out waiting for stage")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRequiresStager(t *testing.T) {
	_, err := New(t.TempDir(), nil, Options{})
	assert.Error(t, err)
}
