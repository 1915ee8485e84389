package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerAdapter stores every collection's blob as a single key in a shared
// BadgerDB instance, keyed by path. Grounded on the teacher's
// cache.BadgerCache, repurposed here from a cache tier (TTL-bearing,
// eviction-prone) into a primary-tier store (no TTL, no eviction — a
// collection's blob lives until Remove is called).
type BadgerAdapter struct {
	db *badger.DB
}

// NewBadgerAdapter opens (or creates) a BadgerDB at dir for use as a
// collection storage backend.
func NewBadgerAdapter(dir string) (*BadgerAdapter, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open badger at %q: %w", dir, err)
	}
	return &BadgerAdapter{db: db}, nil
}

func (a *BadgerAdapter) Read(path string) ([]byte, error) {
	var out []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("storage: badger read %q: %w", path, err)
	}
	return out, nil
}

func (a *BadgerAdapter) Write(path string, data []byte) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), data)
	})
	if err != nil {
		return fmt.Errorf("storage: badger write %q: %w", path, err)
	}
	return nil
}

func (a *BadgerAdapter) Remove(path string) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("storage: badger remove %q: %w", path, err)
	}
	return nil
}

func (a *BadgerAdapter) Exists(path string) (bool, error) {
	exists := false
	err := a.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("storage: badger exists %q: %w", path, err)
	}
	return exists, nil
}

// EnsureDir is a no-op: Badger keys have no directory concept.
func (a *BadgerAdapter) EnsureDir(path string) error { return nil }

// Watch is unsupported: BadgerDB has no external-change notification of its
// own, and every write to this adapter already goes through Write/Remove.
// Returns a no-op stop so callers that watch unconditionally still work.
func (a *BadgerAdapter) Watch(path string, onChange func()) (func(), error) {
	return func() {}, nil
}

// Close releases the underlying BadgerDB handle.
func (a *BadgerAdapter) Close() error { return a.db.Close() }
