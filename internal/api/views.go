package api

import (
	"trix/internal/commit"
	"trix/internal/safe"
	"trix/internal/show"
	"trix/internal/staging"
)

type CommitView struct {
	Hash      safe.Hash       `json:"hash"`
	Parent    safe.Hash       `json:"parent,omitempty"`
	Timestamp string          `json:"timestamp"`
	Message   string          `json:"message"`
	Files     []staging.Entry `json:"files"`
}

func NewCommitView(c *commit.Commit) CommitView {
	files := c.Files
	if files == nil {
		files = []staging.Entry{}
	}
	return CommitView{
		Hash:      c.Hash,
		Parent:    c.Parent,
		Timestamp: c.Timestamp,
		Message:   c.Message,
		Files:     files,
	}
}

type HunkView struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type FileView struct {
	Path           string     `json:"path"`
	Hash           safe.Hash  `json:"hash"`
	Classification string     `json:"classification"`
	ParentHash     safe.Hash  `json:"parent_hash,omitempty"`
	Content        string     `json:"content,omitempty"`
	Hunks          []HunkView `json:"hunks,omitempty"`
}

type ReportView struct {
	Commit CommitView `json:"commit"`
	Files  []FileView `json:"files"`
}

// NewReportView carries full content only where no diff exists.
func NewReportView(r *show.Report) ReportView {
	view := ReportView{
		Commit: NewCommitView(r.Commit),
		Files:  make([]FileView, 0, len(r.Files)),
	}

	for _, f := range r.Files {
		fv := FileView{
			Path:           f.Path,
			Hash:           f.Hash,
			Classification: f.Classification.String(),
			ParentHash:     f.ParentHash,
		}
		switch f.Classification {
		case show.FirstCommit, show.NewFile:
			fv.Content = f.Content
		default:
			for _, h := range f.Hunks {
				fv.Hunks = append(fv.Hunks, HunkView{Kind: h.Kind.String(), Text: h.Text})
			}
		}
		view.Files = append(view.Files, fv)
	}
	return view
}
