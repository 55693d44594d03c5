// internal/diff/diff.go
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	trixerrors "trix/internal/errors"
)

// Kind classifies a hunk
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Hunk is a contiguous run of lines sharing one Kind. Text keeps the line
// terminators of the lines it covers.
type Hunk struct {
	Kind Kind
	Text string
}

// Lines returns the hunk's lines with their terminators.
func (h Hunk) Lines() []string {
	return splitLines(h.Text)
}

// DiffStats counts changed lines across a diff
type DiffStats struct {
	Additions int
	Deletions int
	Changes   int
}

// LineDiff computes a line-level diff from oldText to newText. Concatenating
// the Unchanged and Removed hunks gives back oldText, and concatenating the
// Unchanged and Added hunks gives newText. Inside a change run removed lines
// come before added lines.
func LineDiff(oldText, newText string) []Hunk {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	// Common prefix and suffix never need the LCS table.
	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	b := &builder{}
	for _, line := range oldLines[:prefix] {
		b.push(Unchanged, line)
	}

	oldMid := oldLines[prefix : len(oldLines)-suffix]
	newMid := newLines[prefix : len(newLines)-suffix]
	if tooLargeForLCS(len(oldMid), len(newMid)) {
		// Whole-region replace: still reconstructs both sides, just not minimal.
		for _, line := range oldMid {
			b.push(Removed, line)
		}
		for _, line := range newMid {
			b.push(Added, line)
		}
	} else {
		walkLCS(oldMid, newMid, computeLCS(oldMid, newMid), b)
	}

	for _, line := range oldLines[len(oldLines)-suffix:] {
		b.push(Unchanged, line)
	}

	return b.finish()
}

// Stats counts the added and removed lines in hunks.
func Stats(hunks []Hunk) DiffStats {
	var s DiffStats
	for _, h := range hunks {
		switch h.Kind {
		case Added:
			s.Additions += len(h.Lines())
		case Removed:
			s.Deletions += len(h.Lines())
		}
	}
	s.Changes = s.Additions + s.Deletions
	return s
}

// IsUnchanged reports whether hunks hold no additions or removals.
func IsUnchanged(hunks []Hunk) bool {
	for _, h := range hunks {
		if h.Kind != Unchanged {
			return false
		}
	}
	return true
}

// Apply replays hunks against oldText and returns the new text. It fails with
// a Conflict error when the hunks were not computed from oldText.
func Apply(oldText string, hunks []Hunk) (string, error) {
	var out strings.Builder
	rest := oldText

	for i, h := range hunks {
		switch h.Kind {
		case Unchanged, Removed:
			if !strings.HasPrefix(rest, h.Text) {
				return "", trixerrors.Conflict(fmt.Sprintf("hunk %d (%s) does not match the old text", i, h.Kind))
			}
			rest = rest[len(h.Text):]
			if h.Kind == Unchanged {
				out.WriteString(h.Text)
			}
		case Added:
			out.WriteString(h.Text)
		default:
			return "", trixerrors.ValidationError(fmt.Sprintf("hunk %d has unknown kind %d", i, int(h.Kind)))
		}
	}

	if rest != "" {
		return "", trixerrors.Conflict(fmt.Sprintf("%d bytes of old text not covered by the diff", len(rest)))
	}
	return out.String(), nil
}

// Engine renders unified diffs
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Unified returns a unified diff of oldText against newText, or an empty
// string when they are equal.
func (e *Engine) Unified(oldName, newName, oldText, newText string) (string, error) {
	if oldText == newText {
		return "", nil
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: oldName,
		ToFile:   newName,
		Context:  e.contextLines,
	})
	if err != nil {
		return "", fmt.Errorf("rendering unified diff: %w", err)
	}
	return out, nil
}
