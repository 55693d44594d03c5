// Package show assembles and renders the per-file changes of one commit.
package show

import (
	"fmt"

	"trix/internal/commit"
	"trix/internal/diff"
	"trix/internal/safe"
)

// Classification describes how a file relates to the parent commit.
type Classification int

const (
	FirstCommit Classification = iota // the commit has no parent
	NewFile                           // parent has no entry for the path
	Unchanged                         // same content as the parent's entry
	Modified
)

func (c Classification) String() string {
	switch c {
	case FirstCommit:
		return "first commit"
	case NewFile:
		return "new file in this commit"
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// CommitSource reads commits.
type CommitSource interface {
	Get(hash safe.Hash) (*commit.Commit, error)
}

// ObjectReader reads blob content.
type ObjectReader interface {
	Read(hash safe.Hash) ([]byte, error)
}

// FileReport is one file entry of the shown commit.
type FileReport struct {
	Path           string
	Hash           safe.Hash
	Classification Classification
	Content        string
	// Set only when the parent has an entry for Path.
	ParentHash    safe.Hash
	ParentContent string
	Hunks         []diff.Hunk
}

// Report is everything needed to render a commit.
type Report struct {
	Commit *commit.Commit
	Parent *commit.Commit // nil for the first commit
	Files  []FileReport
}

// Build resolves the commit, its parent and every file content. Any missing
// object fails the whole build, so callers never render a partial report.
func Build(commits CommitSource, objects ObjectReader, hash safe.Hash) (*Report, error) {
	c, err := commits.Get(hash)
	if err != nil {
		return nil, err
	}

	report := &Report{Commit: c, Files: make([]FileReport, 0, len(c.Files))}
	if !c.Parent.IsZero() {
		parent, err := commits.Get(c.Parent)
		if err != nil {
			return nil, fmt.Errorf("reading parent of %s: %w", c.Hash.Short(), err)
		}
		report.Parent = parent
	}

	// Parent blobs are often shared between entries.
	parentContent := make(map[safe.Hash]string)

	for _, entry := range c.Files {
		data, err := objects.Read(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Path, err)
		}

		fr := FileReport{
			Path:    entry.Path,
			Hash:    entry.Hash,
			Content: string(data),
		}

		switch {
		case report.Parent == nil:
			fr.Classification = FirstCommit
		default:
			prev, ok := report.Parent.FindFile(entry.Path)
			if !ok {
				fr.Classification = NewFile
				break
			}

			old, cached := parentContent[prev.Hash]
			if !cached {
				oldData, err := objects.Read(prev.Hash)
				if err != nil {
					return nil, fmt.Errorf("reading parent version of %s: %w", entry.Path, err)
				}
				old = string(oldData)
				parentContent[prev.Hash] = old
			}

			fr.ParentHash = prev.Hash
			fr.ParentContent = old
			fr.Hunks = diff.LineDiff(old, fr.Content)
			if diff.IsUnchanged(fr.Hunks) {
				fr.Classification = Unchanged
			} else {
				fr.Classification = Modified
			}
		}

		report.Files = append(report.Files, fr)
	}

	return report, nil
}
