// Package staging persists the ordered list of (path, hash) pairs waiting to
// be committed.
package staging

import (
	"encoding/json"
	"fmt"
	"os"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
	"trix/internal/storage"
	"trix/internal/validation"
)

// Entry is one staged file. Entries are not deduplicated by path.
type Entry struct {
	Path string    `json:"path"`
	Hash safe.Hash `json:"hash"`
}

// Area is the staging area backed by the index file.
type Area struct {
	path string
}

func NewArea(indexPath string) *Area {
	return &Area{path: indexPath}
}

// Path returns the index file location.
func (a *Area) Path() string {
	return a.path
}

// Stage appends an entry. The whole index is rewritten, so callers must hold
// the repository lock.
func (a *Area) Stage(path string, hash safe.Hash) error {
	if err := validation.RepoPath(path); err != nil {
		return err
	}
	if err := validation.All(hash); err != nil {
		return err
	}

	entries, err := a.Snapshot()
	if err != nil {
		return err
	}

	entries = append(entries, Entry{Path: path, Hash: hash})
	return a.write(entries)
}

// Snapshot returns the staged entries in insertion order. The result is never nil.
func (a *Area) Snapshot() ([]Entry, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trixerrors.NotFound(fmt.Sprintf("index %s not found", a.path))
		}
		return nil, trixerrors.IOFailure("reading index", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, trixerrors.CorruptData("parsing index", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Clear resets the index to an empty sequence.
func (a *Area) Clear() error {
	return a.write([]Entry{})
}

func (a *Area) Len() (int, error) {
	entries, err := a.Snapshot()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (a *Area) write(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := storage.SafeWrite(a.path, data, 0644); err != nil {
		return trixerrors.IOFailure("writing index", err)
	}
	return nil
}
