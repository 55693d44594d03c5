package show

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"trix/internal/diff"
)

// RenderOptions controls the text form of a Report.
type RenderOptions struct {
	Unified      bool // unified diff instead of per-hunk listing
	ContextLines int  // context for unified diffs
	Color        bool
}

type palette struct {
	added     *color.Color
	removed   *color.Color
	unchanged *color.Color
	header    *color.Color
	meta      *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		added:     color.New(color.FgGreen),
		removed:   color.New(color.FgRed),
		unchanged: color.New(color.Faint),
		header:    color.New(color.FgCyan),
		meta:      color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.added, p.removed, p.unchanged, p.header, p.meta} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Render writes report to w.
func Render(w io.Writer, report *Report, opts RenderOptions) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}

	c := report.Commit
	p.meta.Fprintf(ew, "commit %s\n", c.Hash)
	if report.Parent != nil {
		fmt.Fprintf(ew, "Parent: %s\n", report.Parent.Hash)
	}
	fmt.Fprintf(ew, "Date:   %s\n\n", c.Timestamp)
	for _, line := range strings.Split(c.Message, "\n") {
		fmt.Fprintf(ew, "    %s\n", line)
	}

	engine := diff.NewEngine(opts.ContextLines)

	for _, f := range report.Files {
		fmt.Fprintln(ew)
		p.header.Fprintf(ew, "file: %s (%s)\n", f.Path, f.Classification)

		switch f.Classification {
		case FirstCommit, NewFile:
			writeText(ew, f.Content, "", nil)
		case Unchanged, Modified:
			if opts.Unified {
				if f.Classification == Unchanged {
					continue
				}
				out, err := engine.Unified("a/"+f.Path, "b/"+f.Path, f.ParentContent, f.Content)
				if err != nil {
					return err
				}
				writeUnified(ew, out, p)
				continue
			}
			for _, h := range f.Hunks {
				switch h.Kind {
				case diff.Added:
					writeText(ew, h.Text, "+ ", p.added)
				case diff.Removed:
					writeText(ew, h.Text, "- ", p.removed)
				default:
					writeText(ew, h.Text, "  ", p.unchanged)
				}
			}
		}
	}

	return ew.err
}

// writeText writes each line of text behind prefix, terminating the last
// line if needed.
func writeText(w io.Writer, text, prefix string, c *color.Color) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		line = prefix + strings.TrimSuffix(line, "\n")
		if c != nil {
			c.Fprintln(w, line)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}

func writeUnified(w io.Writer, out string, p palette) {
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			fmt.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			p.header.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			p.added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			p.removed.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}

// errWriter keeps the first write error so rendering code can ignore them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	if err != nil {
		e.err = err
	}
	return n, err
}
