package diff

import "strings"

// splitLines splits s after every "\n". A final line without a terminator is
// kept as is, and the empty string has no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// maxLCSCells bounds the LCS table LineDiff will allocate for the region
// between the common prefix and suffix (about 128MB of ints).
var maxLCSCells = 1 << 24

func tooLargeForLCS(n, m int) bool {
	return n > 0 && m > 0 && (n+1)*(m+1) > maxLCSCells
}

// computeLCS fills a suffix table: matrix[i][j] is the LCS length of
// oldLines[i:] and newLines[j:].
func computeLCS(oldLines, newLines []string) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := len(oldLines) - 1; i >= 0; i-- {
		for j := len(newLines) - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// walkLCS emits the edit script front to back. Removals and additions between
// two anchors are buffered so removals are pushed first.
func walkLCS(oldLines, newLines []string, lcs [][]int, b *builder) {
	var removed, added []string
	flush := func() {
		for _, line := range removed {
			b.push(Removed, line)
		}
		for _, line := range added {
			b.push(Added, line)
		}
		removed, added = removed[:0], added[:0]
	}

	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && oldLines[i] == newLines[j]:
			flush()
			b.push(Unchanged, oldLines[i])
			i++
			j++
		case j == len(newLines) || (i < len(oldLines) && lcs[i+1][j] >= lcs[i][j+1]):
			removed = append(removed, oldLines[i])
			i++
		default:
			added = append(added, newLines[j])
			j++
		}
	}
	flush()
}

// builder coalesces consecutive lines of one kind into a single hunk.
type builder struct {
	hunks []Hunk
	kind  Kind
	text  strings.Builder
	open  bool
}

func (b *builder) push(kind Kind, line string) {
	if b.open && b.kind != kind {
		b.close()
	}
	b.kind = kind
	b.open = true
	b.text.WriteString(line)
}

func (b *builder) close() {
	if !b.open {
		return
	}
	b.hunks = append(b.hunks, Hunk{Kind: b.kind, Text: b.text.String()})
	b.text.Reset()
	b.open = false
}

func (b *builder) finish() []Hunk {
	b.close()
	if b.hunks == nil {
		return []Hunk{}
	}
	return b.hunks
}
