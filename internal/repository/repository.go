// internal/repository/repository.go
package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"trix/internal/commit"
	"trix/internal/config"
	"trix/internal/diff"
	trixerrors "trix/internal/errors"
	"trix/internal/safe"
	"trix/internal/show"
	"trix/internal/staging"
	"trix/internal/storage"
	"trix/internal/validation"
)

// DirName is the repository directory created at the root of a work tree.
const DirName = validation.ReservedDir

// HeadRef names the current head wherever a hash is accepted.
const HeadRef = "HEAD"

// Repository ties together the stores of one repository. It holds the badger
// directory lock for as long as it is open, so at most one Repository per
// root can exist across processes.
type Repository struct {
	Root   string // work tree
	Dir    string // Root/.trix
	Config *config.Config
	Logger *zap.Logger
	DB     *badger.DB
	Safe   *safe.Safe
	Index  *staging.Area
	Graph  *commit.Graph
	Diff   *diff.Engine
}

// Status is the state of the staging area relative to HEAD.
type Status struct {
	Head   safe.Hash
	Staged []staging.Entry
}

type layout struct {
	dir string
}

func (l layout) objects() string { return filepath.Join(l.dir, "objects") }
func (l layout) head() string    { return filepath.Join(l.dir, "HEAD") }
func (l layout) index() string   { return filepath.Join(l.dir, "index") }
func (l layout) db() string      { return filepath.Join(l.dir, "db") }
func (l layout) journal() string { return filepath.Join(l.dir, "COMMIT_PENDING") }
func (l layout) config() string  { return config.Path(l.dir) }

// Init creates an empty repository under root.
func Init(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	l := layout{dir: filepath.Join(absRoot, DirName)}
	if _, err := os.Stat(l.dir); err == nil {
		return trixerrors.AlreadyInitialized(fmt.Sprintf("repository already exists at %s", l.dir))
	} else if !os.IsNotExist(err) {
		return trixerrors.IOFailure("checking repository directory", err)
	}

	for _, dir := range []string{l.dir, l.objects(), l.db()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return trixerrors.IOFailure(fmt.Sprintf("creating directory %s", dir), err)
		}
	}

	files := []struct {
		path string
		data string
	}{
		{l.head(), ""},
		{l.index(), "[]"},
	}
	for _, f := range files {
		if err := storage.CreateExclusive(f.path, []byte(f.data), 0644); err != nil {
			if os.IsExist(err) {
				return trixerrors.AlreadyInitialized(fmt.Sprintf("%s already exists", f.path))
			}
			return trixerrors.IOFailure(fmt.Sprintf("creating %s", f.path), err)
		}
	}

	if err := config.Default().Save(l.config()); err != nil && !os.IsExist(err) {
		return trixerrors.IOFailure("writing config", err)
	}
	return nil
}

// FindRoot searches startDir and its ancestors for a repository.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", trixerrors.NotFound(fmt.Sprintf("not a trix repository (or any parent): %s", startDir))
}

// Open opens the repository rooted at root and finishes any commit that was
// interrupted. A repository already open elsewhere yields a Locked error.
func Open(root string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	l := layout{dir: filepath.Join(absRoot, DirName)}
	if info, err := os.Stat(l.dir); err != nil || !info.IsDir() {
		return nil, trixerrors.NotFound(fmt.Sprintf("no repository at %s", absRoot))
	}

	cfg, err := config.Load(l.config())
	if err != nil {
		return nil, trixerrors.ValidationError(fmt.Sprintf("loading config: %v", err))
	}

	opts := badger.DefaultOptions(l.db())
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		if isLockError(err) {
			return nil, trixerrors.Locked(fmt.Sprintf("repository %s is in use by another process", absRoot), err)
		}
		return nil, trixerrors.IOFailure("opening object catalog", err)
	}

	r, err := assemble(absRoot, l, cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := r.Graph.Recover(); err != nil {
		db.Close()
		return nil, fmt.Errorf("recovering interrupted commit: %w", err)
	}

	logger.Debug("repository opened", zap.String("root", absRoot))
	return r, nil
}

func assemble(root string, l layout, cfg *config.Config, db *badger.DB, logger *zap.Logger) (*Repository, error) {
	objects, err := safe.New(db, safe.Options{
		Root:      l.objects(),
		CacheSize: cfg.Cache.Objects,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	index := staging.NewArea(l.index())
	graph, err := commit.NewGraph(objects, index, commit.NewHeadFile(l.head()), commit.Options{
		JournalPath: l.journal(),
		MaxDepth:    cfg.History.MaxDepth,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing commit graph: %w", err)
	}

	return &Repository{
		Root:   root,
		Dir:    l.dir,
		Config: cfg,
		Logger: logger,
		DB:     db,
		Safe:   objects,
		Index:  index,
		Graph:  graph,
		Diff:   diff.NewEngine(cfg.Diff.ContextLines),
	}, nil
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

// Close releases the catalog and the repository lock.
func (r *Repository) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	if err := r.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	r.DB = nil
	return nil
}

// Add stores the file at path and stages it under its root-relative,
// slash-separated path. Relative paths are taken from the working directory.
func (r *Repository) Add(path string) (safe.Hash, error) {
	rel, abs, err := r.relativePath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", trixerrors.NotFound(fmt.Sprintf("file %s not found", path))
		}
		return "", trixerrors.IOFailure(fmt.Sprintf("checking %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return "", trixerrors.ValidationError(fmt.Sprintf("%s is not a regular file", path))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", trixerrors.IOFailure(fmt.Sprintf("reading %s", path), err)
	}

	hash, err := r.Safe.Store(safe.KindBlob, data)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", rel, err)
	}
	if err := r.Index.Stage(rel, hash); err != nil {
		return "", fmt.Errorf("staging %s: %w", rel, err)
	}

	r.Logger.Info("file staged", zap.String("path", rel), zap.String("hash", string(hash)))
	return hash, nil
}

// relativePath maps path to its slash-separated form relative to Root.
func (r *Repository) relativePath(path string) (rel, abs string, err error) {
	if strings.TrimSpace(path) == "" {
		return "", "", trixerrors.ValidationError("path cannot be empty")
	}

	abs, err = filepath.Abs(path)
	if err != nil {
		return "", "", trixerrors.ValidationError(fmt.Sprintf("invalid path %s: %v", path, err))
	}
	// Resolve the parent so a symlinked temp dir or root still compares equal.
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	rel, err = filepath.Rel(r.Root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", trixerrors.ValidationError(fmt.Sprintf("%s is outside repository %s", path, r.Root))
	}

	rel = filepath.ToSlash(rel)
	if err := validation.RepoPath(rel); err != nil {
		return "", "", err
	}
	return rel, abs, nil
}

// Commit records the staging area as a new commit.
func (r *Repository) Commit(message string) (safe.Hash, error) {
	return r.Graph.CreateCommit(message)
}

// Head returns the current head, or the zero hash before the first commit.
func (r *Repository) Head() (safe.Hash, error) {
	return r.Graph.CurrentHead()
}

// Log returns up to limit commits from HEAD, newest first.
func (r *Repository) Log(limit int) ([]*commit.Commit, error) {
	return r.Graph.Log(limit)
}

// Resolve expands ref, which is HEAD or a full or abbreviated hash.
func (r *Repository) Resolve(ref string) (safe.Hash, error) {
	if strings.EqualFold(strings.TrimSpace(ref), HeadRef) {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if head.IsZero() {
			return "", trixerrors.NotFound("no commits yet")
		}
		return head, nil
	}
	return r.Safe.Resolve(ref)
}

// Show builds the change report for the commit named by ref.
func (r *Repository) Show(ref string) (*show.Report, error) {
	hash, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return show.Build(r.Graph, r.Safe, hash)
}

// Cat returns the raw bytes of the object named by ref.
func (r *Repository) Cat(ref string) ([]byte, error) {
	hash, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.Safe.Read(hash)
}

// GetCommit returns the decoded commit named by ref.
func (r *Repository) GetCommit(ref string) (*commit.Commit, error) {
	hash, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.Graph.Get(hash)
}

// Status returns HEAD and the staged entries.
func (r *Repository) Status() (*Status, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	staged, err := r.Index.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Status{Head: head, Staged: staged}, nil
}

