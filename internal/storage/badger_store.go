// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	trixerrors "trix/internal/errors"
)

// Record is anything a Catalog can index.
type Record interface {
	Key() string
}

// Catalog keeps JSON records of one type under "<namespace>/<key>" keys.
// Records are write-once: an existing key is never overwritten.
type Catalog[T Record] struct {
	db        *badger.DB
	namespace []byte
}

func NewCatalog[T Record](db *badger.DB, namespace string) *Catalog[T] {
	return &Catalog[T]{
		db:        db,
		namespace: []byte(namespace + "/"),
	}
}

func (c *Catalog[T]) key(k string) []byte {
	return append(append([]byte(nil), c.namespace...), k...)
}

// PutIfAbsent stores rec unless its key is already present. It reports
// whether rec was stored.
func (c *Catalog[T]) PutIfAbsent(rec T) (bool, error) {
	if rec.Key() == "" {
		return false, trixerrors.ValidationError("catalog key cannot be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encoding record %s: %w", rec.Key(), err)
	}

	stored := false
	key := c.key(rec.Key())
	err = c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		stored = true
		return txn.Set(key, data)
	})
	if err != nil {
		return false, fmt.Errorf("storing record %s: %w", rec.Key(), err)
	}
	return stored, nil
}

func (c *Catalog[T]) Get(k string) (T, error) {
	var rec T
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(k))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return rec, trixerrors.NotFound(fmt.Sprintf("no catalog record for %s", k))
	case err != nil:
		return rec, trixerrors.CorruptData(fmt.Sprintf("reading catalog record %s", k), err)
	}
	return rec, nil
}

func (c *Catalog[T]) Has(k string) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(c.key(k))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// All decodes every record in key order.
func (c *Catalog[T]) All() ([]T, error) {
	records := []T{}
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.namespace
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec T
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", item.Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning catalog: %w", err)
	}
	return records, nil
}

// KeysWithPrefix returns the keys that start with p, in key order. Values
// are not loaded.
func (c *Catalog[T]) KeysWithPrefix(p string) ([]string, error) {
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = c.key(p)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(c.namespace):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning catalog keys: %w", err)
	}
	return keys, nil
}
