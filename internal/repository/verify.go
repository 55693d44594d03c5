package repository

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
)

// Problem is one inconsistency found by Verify.
type Problem struct {
	Hash    safe.Hash `json:"hash,omitempty"`
	Message string    `json:"message"`
}

func (p Problem) String() string {
	if p.Hash.IsZero() {
		return p.Message
	}
	return fmt.Sprintf("%s: %s", p.Hash.Short(), p.Message)
}

// VerifyReport summarizes a full consistency check.
type VerifyReport struct {
	Objects  int       `json:"objects"`
	Commits  int       `json:"commits"`
	Reached  int       `json:"reached"` // commits reachable from HEAD
	Problems []Problem `json:"problems"`
}

// OK reports whether no problems were found.
func (v *VerifyReport) OK() bool {
	return len(v.Problems) == 0
}

func (v *VerifyReport) add(hash safe.Hash, format string, args ...interface{}) {
	v.Problems = append(v.Problems, Problem{Hash: hash, Message: fmt.Sprintf(format, args...)})
}

// Verify re-hashes every object, checks the catalog against the objects
// directory and walks history from HEAD checking that every parent and file
// entry resolves. Inconsistencies are collected in the report; the returned
// error is reserved for failures that stop the check itself.
func (r *Repository) Verify() (*VerifyReport, error) {
	report := &VerifyReport{Problems: []Problem{}}

	files, err := r.Safe.Files()
	if err != nil {
		return nil, err
	}
	metas, err := r.Safe.List()
	if err != nil {
		return nil, err
	}

	catalogued := make(map[safe.Hash]safe.Kind, len(metas))
	for _, m := range metas {
		catalogued[m.Hash] = m.Kind
	}
	onDisk := make(map[safe.Hash]bool, len(files))

	for _, h := range files {
		onDisk[h] = true
		report.Objects++

		if err := h.Validate(); err != nil {
			report.add("", "stray file %s in objects directory", h)
			continue
		}
		if err := r.Safe.Verify(h); err != nil {
			report.add(h, "%v", err)
		}
		if _, ok := catalogued[h]; !ok {
			report.add(h, "object missing from catalog")
		}
	}

	for _, m := range metas {
		if !onDisk[m.Hash] {
			report.add(m.Hash, "catalogued %s has no object file", m.Kind)
			continue
		}
		if m.Kind != safe.KindCommit {
			continue
		}
		report.Commits++

		c, err := r.Graph.Get(m.Hash)
		if err != nil {
			report.add(m.Hash, "%v", err)
			continue
		}
		if !c.Parent.IsZero() && !onDisk[c.Parent] {
			report.add(m.Hash, "parent %s is missing", c.Parent.Short())
		}
		for _, f := range c.Files {
			if !onDisk[f.Hash] {
				report.add(m.Hash, "file %s points at missing object %s", f.Path, f.Hash.Short())
			}
		}
	}

	head, err := r.Head()
	if err != nil {
		if !stderrors.Is(err, trixerrors.ErrCorruptData) {
			return nil, err
		}
		report.add("", "%v", err)
	}
	if !head.IsZero() {
		if !onDisk[head] {
			report.add(head, "HEAD points at a missing commit")
		} else {
			for _, err := range r.Graph.Walk(head) {
				if err != nil {
					report.add("", "history from HEAD: %v", err)
					break
				}
				report.Reached++
			}
		}
	}

	staged, err := r.Index.Snapshot()
	if err != nil {
		report.add("", "index: %v", err)
	}
	for _, e := range staged {
		if !onDisk[e.Hash] {
			report.add(e.Hash, "staged %s points at a missing object", e.Path)
		}
	}

	r.Logger.Info("verify finished",
		zap.Int("objects", report.Objects),
		zap.Int("commits", report.Commits),
		zap.Int("problems", len(report.Problems)))

	return report, nil
}
