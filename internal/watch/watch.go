// Package watch re-stages files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"trix/internal/safe"
)

// Stager stages the file at an absolute path.
type Stager interface {
	Add(path string) (safe.Hash, error)
}

// Options configures a Watcher
type Options struct {
	Logger *zap.Logger
	// OnStage is called after every successful stage.
	OnStage func(path string, hash safe.Hash)
	// IgnoreDirs are directory names never descended into.
	IgnoreDirs []string
}

// Watcher stages watched files on create and write. A write that leaves the
// content identical to the last staged version is skipped.
type Watcher struct {
	root       string
	stager     Stager
	watcher    *fsnotify.Watcher
	ignoreDirs map[string]bool
	onStage    func(string, safe.Hash)
	logger     *zap.Logger

	mu    sync.Mutex
	files map[string]bool      // individually watched files
	trees map[string]bool      // watched directory roots
	last  map[string]safe.Hash // last hash seen per file
}

// New creates a watcher for files under root.
func New(root string, stager Stager, opts Options) (*Watcher, error) {
	if stager == nil {
		return nil, fmt.Errorf("stager cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	ignore := map[string]bool{
		".trix":        true,
		".git":         true,
		"node_modules": true,
		"vendor":       true,
	}
	for _, d := range opts.IgnoreDirs {
		ignore[d] = true
	}

	return &Watcher{
		root:       absRoot,
		stager:     stager,
		watcher:    fw,
		ignoreDirs: ignore,
		onStage:    opts.OnStage,
		logger:     opts.Logger,
		files:      make(map[string]bool),
		trees:      make(map[string]bool),
		last:       make(map[string]safe.Hash),
	}, nil
}

// Watch adds files or directory trees, or the whole root when called without
// paths. Current contents are remembered so only later changes are staged.
func (w *Watcher) Watch(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(paths) == 0 {
		paths = []string{w.root}
	}

	for _, p := range paths {
		abs, err := w.absolute(p)
		if err != nil {
			return err
		}

		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("accessing path %s: %w", p, err)
		}

		if !info.IsDir() {
			if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("adding directory to watcher: %w", err)
			}
			w.files[abs] = true
			w.remember(abs)
			continue
		}

		w.trees[abs] = true
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && w.ignoreDirs[d.Name()] {
					return filepath.SkipDir
				}
				if err := w.watcher.Add(path); err != nil {
					return fmt.Errorf("adding directory to watcher: %w", err)
				}
				return nil
			}
			if d.Type().IsRegular() {
				w.remember(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return nil
}

func (w *Watcher) absolute(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("getting absolute path for %s: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

func (w *Watcher) remember(path string) {
	if data, err := os.ReadFile(path); err == nil {
		w.last[path] = safe.HashContent(data)
	}
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleEvent processes individual filesystem events
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Clean(event.Name)
	if !w.watched(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Gone again before we got to it.
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !w.ignoreDirs[info.Name()] {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Error("adding new directory to watcher", zap.String("path", path), zap.Error(err))
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading changed file", zap.String("path", path), zap.Error(err))
		return
	}
	if prev, ok := w.last[path]; ok && prev == safe.HashContent(data) {
		return
	}

	hash, err := w.stager.Add(path)
	if err != nil {
		w.logger.Error("staging changed file", zap.String("path", path), zap.Error(err))
		return
	}
	w.last[path] = hash

	w.logger.Debug("staged on change", zap.String("path", path), zap.String("hash", string(hash)))
	if w.onStage != nil {
		w.onStage(path, hash)
	}
}

// watched reports whether path is a watched file or lies in a watched tree
// outside any ignored directory.
func (w *Watcher) watched(path string) bool {
	if w.files[path] {
		return true
	}
	for tree := range w.trees {
		rel, err := filepath.Rel(tree, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		ignored := false
		for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
			if w.ignoreDirs[part] {
				ignored = true
				break
			}
		}
		if !ignored {
			return true
		}
	}
	return false
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
