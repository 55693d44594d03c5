// internal/commit/types.go
package commit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
	"trix/internal/staging"
)

// FormatVersion tags every serialized commit record.
const FormatVersion = 1

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Commit is an immutable snapshot of staged files linked to its parent.
type Commit struct {
	Hash      safe.Hash       // identity, not part of the record
	Version   int             // record format version
	Timestamp string          // ISO-8601
	Message   string
	Files     []staging.Entry // commit order, duplicates allowed
	Parent    safe.Hash       // zero for the first commit
}

// record is the wire shape. Field order here is the canonical order.
type record struct {
	Version   int             `json:"v"`
	Timestamp string          `json:"timestamp"`
	Message   string          `json:"message"`
	Files     []staging.Entry `json:"files"`
	Parent    safe.Hash       `json:"parent,omitempty"`
}

// Encode returns the canonical serialization of c. The same bytes are hashed
// and stored, so this must stay stable for a given FormatVersion.
func Encode(c *Commit) ([]byte, error) {
	files := c.Files
	if files == nil {
		files = []staging.Entry{}
	}
	version := c.Version
	if version == 0 {
		version = FormatVersion
	}

	data, err := json.Marshal(record{
		Version:   version,
		Timestamp: c.Timestamp,
		Message:   c.Message,
		Files:     files,
		Parent:    c.Parent,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling commit: %w", err)
	}
	return data, nil
}

// Decode parses a stored commit record.
func Decode(hash safe.Hash, data []byte) (*Commit, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var r record
	if err := dec.Decode(&r); err != nil {
		return nil, trixerrors.CorruptData(fmt.Sprintf("object %s is not a commit record", hash), err)
	}
	if dec.More() {
		return nil, trixerrors.CorruptData(fmt.Sprintf("object %s has trailing data after commit record", hash), nil)
	}

	if r.Version != FormatVersion {
		return nil, trixerrors.CorruptData(fmt.Sprintf("commit %s has unsupported format version %d", hash, r.Version), nil)
	}
	if _, err := time.Parse(TimestampLayout, r.Timestamp); err != nil {
		return nil, trixerrors.CorruptData(fmt.Sprintf("commit %s has invalid timestamp", hash), err)
	}
	if !r.Parent.IsZero() {
		if err := r.Parent.Validate(); err != nil {
			return nil, trixerrors.CorruptData(fmt.Sprintf("commit %s has invalid parent", hash), err)
		}
	}
	for _, f := range r.Files {
		if err := f.Hash.Validate(); err != nil {
			return nil, trixerrors.CorruptData(fmt.Sprintf("commit %s has invalid entry for %s", hash, f.Path), err)
		}
	}

	files := r.Files
	if files == nil {
		files = []staging.Entry{}
	}

	return &Commit{
		Hash:      hash,
		Version:   r.Version,
		Timestamp: r.Timestamp,
		Message:   r.Message,
		Files:     files,
		Parent:    r.Parent,
	}, nil
}

// Time parses the commit timestamp.
func (c *Commit) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, c.Timestamp)
}

// FindFile returns the first entry for path.
func (c *Commit) FindFile(path string) (staging.Entry, bool) {
	for _, f := range c.Files {
		if f.Path == path {
			return f, true
		}
	}
	return staging.Entry{}, false
}
