// internal/safe/safe.go
package safe

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	trixerrors "trix/internal/errors"
	"trix/internal/storage"
)

// Kind records what an object holds. Objects themselves are untyped bytes;
// the kind lives only in the catalog.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindCommit Kind = "commit"
)

// ObjectMeta stores metadata about a stored object
type ObjectMeta struct {
	Hash      Hash      `json:"hash"`
	Kind      Kind      `json:"kind"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (m ObjectMeta) Key() string {
	return string(m.Hash)
}

// Safe is the append-only, content-addressed object store. Object bytes live
// in one file per hash under root; metadata lives in a badger catalog.
type Safe struct {
	root    string
	catalog *storage.Catalog[ObjectMeta]
	cache   *lru.Cache[Hash, []byte]
	logger  *zap.Logger
}

// Options configures Safe behavior
type Options struct {
	Root      string // objects directory
	CacheSize int    // number of objects kept in memory
	Logger    *zap.Logger
}

// New creates a new Safe instance
func New(db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating objects directory: %w", err)
	}

	cache, err := lru.New[Hash, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Safe{
		root:    opts.Root,
		catalog: storage.NewCatalog[ObjectMeta](db, "object"),
		cache:   cache,
		logger:  opts.Logger,
	}, nil
}

// Store hashes content, writes it and returns the hash.
func (s *Safe) Store(kind Kind, content []byte) (Hash, error) {
	hash := HashContent(content)
	if err := s.Write(hash, kind, content); err != nil {
		return "", err
	}
	return hash, nil
}

// Write persists content under hash. Writing the same object twice rewrites
// identical bytes.
func (s *Safe) Write(hash Hash, kind Kind, content []byte) error {
	if err := hash.Validate(); err != nil {
		return err
	}
	if HashContent(content) != hash {
		return trixerrors.ValidationError(fmt.Sprintf("content does not hash to %s", hash))
	}
	if content == nil {
		content = []byte{}
	}

	if err := storage.SafeWrite(s.objectPath(hash), content, 0644); err != nil {
		return trixerrors.IOFailure(fmt.Sprintf("writing object %s", hash), err)
	}

	_, err := s.catalog.PutIfAbsent(ObjectMeta{
		Hash:      hash,
		Kind:      kind,
		Size:      int64(len(content)),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return trixerrors.IOFailure("recording object metadata", err)
	}

	s.cache.Add(hash, bytes.Clone(content))
	s.logger.Debug("object written",
		zap.String("hash", string(hash)),
		zap.String("kind", string(kind)),
		zap.Int("size", len(content)))
	return nil
}

// Read returns exactly the bytes written under hash.
func (s *Safe) Read(hash Hash) ([]byte, error) {
	if err := hash.Validate(); err != nil {
		return nil, err
	}

	if content, ok := s.cache.Get(hash); ok {
		return bytes.Clone(content), nil
	}

	content, err := os.ReadFile(s.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trixerrors.NotFound(fmt.Sprintf("object %s not found", hash))
		}
		return nil, trixerrors.IOFailure(fmt.Sprintf("reading object %s", hash), err)
	}

	if HashContent(content) != hash {
		return nil, trixerrors.CorruptData(fmt.Sprintf("object %s does not match its hash", hash), nil)
	}

	s.cache.Add(hash, content)
	return bytes.Clone(content), nil
}

// Exists reports whether an object file is present for hash.
func (s *Safe) Exists(hash Hash) (bool, error) {
	if err := hash.Validate(); err != nil {
		return false, err
	}
	if s.cache.Contains(hash) {
		return true, nil
	}

	_, err := os.Stat(s.objectPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, trixerrors.IOFailure(fmt.Sprintf("checking object %s", hash), err)
}

// Meta returns the catalog entry for hash.
func (s *Safe) Meta(hash Hash) (ObjectMeta, error) {
	meta, err := s.catalog.Get(string(hash))
	if err != nil {
		return ObjectMeta{}, fmt.Errorf("getting metadata for %s: %w", hash, err)
	}
	return meta, nil
}

// List returns every catalogued object, ordered by hash.
func (s *Safe) List() ([]ObjectMeta, error) {
	metas, err := s.catalog.All()
	if err != nil {
		return nil, trixerrors.IOFailure("listing objects", err)
	}
	return metas, nil
}

// Files returns the hashes of the object files on disk, sorted.
func (s *Safe) Files() ([]Hash, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, trixerrors.IOFailure("reading objects directory", err)
	}

	var hashes []Hash
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		hashes = append(hashes, Hash(e.Name()))
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes, nil
}

// Resolve expands ref, a full or abbreviated hash, to the unique matching
// object hash.
func (s *Safe) Resolve(ref string) (Hash, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if len(ref) == HashLen {
		return ParseHash(ref)
	}
	if len(ref) < MinPrefixLen || len(ref) > HashLen || !isLowerHex(ref) {
		return "", trixerrors.ValidationError(fmt.Sprintf("invalid object reference %q", ref))
	}

	ids, err := s.catalog.KeysWithPrefix(ref)
	if err != nil {
		return "", trixerrors.IOFailure("resolving object reference", err)
	}

	switch len(ids) {
	case 0:
		return "", trixerrors.NotFound(fmt.Sprintf("no object matches %s", ref))
	case 1:
		return Hash(ids[0]), nil
	default:
		return "", trixerrors.ValidationError(fmt.Sprintf("ambiguous object reference %s matches %d objects", ref, len(ids)))
	}
}

// Verify re-reads the object from disk and checks its hash.
func (s *Safe) Verify(hash Hash) error {
	s.cache.Remove(hash)
	_, err := s.Read(hash)
	return err
}

func (s *Safe) objectPath(hash Hash) string {
	return filepath.Join(s.root, string(hash))
}
