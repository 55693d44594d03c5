// internal/commit/graph.go
package commit

import (
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	trixerrors "trix/internal/errors"
	"trix/internal/safe"
	"trix/internal/staging"
	"trix/internal/validation"
)

// ObjectStore is the subset of the object store the graph needs.
type ObjectStore interface {
	Write(hash safe.Hash, kind safe.Kind, content []byte) error
	Read(hash safe.Hash) ([]byte, error)
	Exists(hash safe.Hash) (bool, error)
}

// Options configures a Graph
type Options struct {
	JournalPath string // where in-flight commits are recorded
	MaxDepth    int    // longest history Walk will follow
	Logger      *zap.Logger
	Now         func() time.Time
}

// Graph builds commits from the staging area and maintains HEAD.
type Graph struct {
	store    ObjectStore
	area     *staging.Area
	head     *HeadFile
	journal  *journal
	maxDepth int
	logger   *zap.Logger
	now      func() time.Time
}

func NewGraph(store ObjectStore, area *staging.Area, head *HeadFile, opts Options) (*Graph, error) {
	if store == nil {
		return nil, fmt.Errorf("object store cannot be nil")
	}
	if area == nil || head == nil {
		return nil, fmt.Errorf("staging area and HEAD are required")
	}
	if opts.JournalPath == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1_000_000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Graph{
		store:    store,
		area:     area,
		head:     head,
		journal:  &journal{path: opts.JournalPath},
		maxDepth: opts.MaxDepth,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// CurrentHead returns the head hash, or the zero hash when nothing has been
// committed yet.
func (g *Graph) CurrentHead() (safe.Hash, error) {
	return g.head.Read()
}

// CreateCommit turns the staging area into a commit on top of HEAD, advances
// HEAD and clears the staging area.
func (g *Graph) CreateCommit(message string) (safe.Hash, error) {
	if err := validation.CommitMessage(message); err != nil {
		return "", err
	}

	files, err := g.area.Snapshot()
	if err != nil {
		return "", fmt.Errorf("reading staging area: %w", err)
	}
	parent, err := g.head.Read()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	c := &Commit{
		Version:   FormatVersion,
		Timestamp: g.now().UTC().Format(TimestampLayout),
		Message:   message,
		Files:     files,
		Parent:    parent,
	}

	data, err := Encode(c)
	if err != nil {
		return "", err
	}
	c.Hash = safe.HashContent(data)

	if err := g.store.Write(c.Hash, safe.KindCommit, data); err != nil {
		return "", fmt.Errorf("storing commit: %w", err)
	}

	// From here on the commit object exists, so an interrupted sequence can
	// always be rolled forward by Recover.
	p, err := g.journal.begin(parent, c.Hash, g.now())
	if err != nil {
		return "", err
	}
	if err := g.head.CompareAndSwap(parent, c.Hash); err != nil {
		if abortErr := g.journal.finish(); abortErr != nil {
			g.logger.Warn("removing commit journal", zap.Error(abortErr))
		}
		return "", fmt.Errorf("advancing HEAD: %w", err)
	}
	if err := g.area.Clear(); err != nil {
		return "", fmt.Errorf("clearing staging area: %w", err)
	}
	if err := g.journal.finish(); err != nil {
		return "", err
	}

	g.logger.Info("commit created",
		zap.String("commit", string(c.Hash)),
		zap.String("parent", string(parent)),
		zap.Int("files", len(files)),
		zap.String("journal_id", p.ID))

	return c.Hash, nil
}

// Get reads and decodes the commit stored under hash.
func (g *Graph) Get(hash safe.Hash) (*Commit, error) {
	data, err := g.store.Read(hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit: %w", err)
	}
	return Decode(hash, data)
}

// Walk yields commits from start back to the root, newest first. A revisited
// commit or a chain longer than MaxDepth yields a CorruptData error.
func (g *Graph) Walk(start safe.Hash) iter.Seq2[*Commit, error] {
	return func(yield func(*Commit, error) bool) {
		visited := make(map[safe.Hash]struct{})

		for current := start; !current.IsZero(); {
			if _, seen := visited[current]; seen {
				yield(nil, trixerrors.CorruptData(fmt.Sprintf("history cycle at commit %s", current), nil))
				return
			}
			if len(visited) >= g.maxDepth {
				yield(nil, trixerrors.CorruptData(fmt.Sprintf("history deeper than %d commits", g.maxDepth), nil))
				return
			}
			visited[current] = struct{}{}

			c, err := g.Get(current)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(c, nil) {
				return
			}
			current = c.Parent
		}
	}
}

// Log returns up to limit commits from HEAD, newest first. limit <= 0 means all.
func (g *Graph) Log(limit int) ([]*Commit, error) {
	head, err := g.head.Read()
	if err != nil {
		return nil, err
	}

	commits := []*Commit{}
	for c, err := range g.Walk(head) {
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
		if limit > 0 && len(commits) >= limit {
			break
		}
	}
	return commits, nil
}

// Recover finishes a commit interrupted after its object was written.
// Afterwards the repository is either fully before or fully after that commit.
func (g *Graph) Recover() error {
	p, err := g.journal.load()
	if err != nil || p == nil {
		return err
	}

	log := g.logger.With(
		zap.String("journal_id", p.ID),
		zap.String("commit", string(p.Commit)))

	exists, err := g.store.Exists(p.Commit)
	if err != nil {
		return fmt.Errorf("checking pending commit: %w", err)
	}
	if !exists {
		log.Warn("discarding commit journal without commit object")
		return g.journal.finish()
	}

	head, err := g.head.Read()
	if err != nil {
		return fmt.Errorf("reading HEAD: %w", err)
	}
	switch head {
	case p.Commit:
	case p.Parent:
		if err := g.head.CompareAndSwap(p.Parent, p.Commit); err != nil {
			return fmt.Errorf("advancing HEAD: %w", err)
		}
	default:
		return trixerrors.Conflict(fmt.Sprintf(
			"interrupted commit %s expected HEAD %s, found %s; inspect %s",
			p.Commit.Short(), displayHash(p.Parent), displayHash(head), g.journal.path))
	}

	if err := g.area.Clear(); err != nil {
		return fmt.Errorf("clearing staging area: %w", err)
	}
	if err := g.journal.finish(); err != nil {
		return err
	}

	log.Info("recovered interrupted commit")
	return nil
}
