package commit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
	"trix/internal/storage"
)

// pendingCommit is written after the commit object and before HEAD moves.
type pendingCommit struct {
	ID        string    `json:"id"`
	Parent    safe.Hash `json:"parent,omitempty"`
	Commit    safe.Hash `json:"commit"`
	CreatedAt time.Time `json:"created_at"`
}

type journal struct {
	path string
}

func (j *journal) begin(parent, commit safe.Hash, now time.Time) (*pendingCommit, error) {
	p := &pendingCommit{
		ID:        uuid.New().String(),
		Parent:    parent,
		Commit:    commit,
		CreatedAt: now.UTC(),
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling commit journal: %w", err)
	}
	if err := storage.SafeWrite(j.path, data, 0644); err != nil {
		return nil, trixerrors.IOFailure("writing commit journal", err)
	}
	return p, nil
}

// load returns nil when no commit is in flight.
func (j *journal) load() (*pendingCommit, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, trixerrors.IOFailure("reading commit journal", err)
	}

	var p pendingCommit
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, trixerrors.CorruptData("parsing commit journal", err)
	}
	if err := p.Commit.Validate(); err != nil {
		return nil, trixerrors.CorruptData("commit journal names no valid commit", err)
	}
	return &p, nil
}

func (j *journal) finish() error {
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return trixerrors.IOFailure("removing commit journal", err)
	}
	return nil
}
