package commit

import (
	"fmt"
	"os"
	"strings"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
	"trix/internal/storage"
)

// HeadFile stores the hash of the most recent commit as a single line.
type HeadFile struct {
	path string
}

func NewHeadFile(path string) *HeadFile {
	return &HeadFile{path: path}
}

// Read returns the head hash. A missing or empty file means no history yet
// and returns the zero hash with a nil error.
func (h *HeadFile) Read() (safe.Hash, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", trixerrors.IOFailure("reading HEAD", err)
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", nil
	}

	hash, err := safe.ParseHash(s)
	if err != nil {
		return "", trixerrors.CorruptData("HEAD does not hold a commit hash", err)
	}
	return hash, nil
}

// CompareAndSwap points HEAD at next only if it still holds expected.
func (h *HeadFile) CompareAndSwap(expected, next safe.Hash) error {
	current, err := h.Read()
	if err != nil {
		return err
	}
	if current != expected {
		return trixerrors.Conflict(fmt.Sprintf("HEAD moved from %s to %s", displayHash(expected), displayHash(current)))
	}
	return h.write(next)
}

func (h *HeadFile) write(hash safe.Hash) error {
	if err := storage.SafeWrite(h.path, []byte(hash), 0644); err != nil {
		return trixerrors.IOFailure("writing HEAD", err)
	}
	return nil
}

func displayHash(h safe.Hash) string {
	if h.IsZero() {
		return "<none>"
	}
	return h.Short()
}
