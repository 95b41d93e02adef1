package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// badgerSetAttempts bounds retries of an unconditional write that keeps losing to concurrent commits
const badgerSetAttempts = 16

// BadgerStore is an embedded store for single-node deployments
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database at path
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already opened database
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Get(_ context.Context, key string) (*Entry, error) {
	var e *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, err = readEntry(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *BadgerStore) MGet(_ context.Context, keys []string) ([]*Entry, error) {
	out := make([]*Entry, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, k := range keys {
			e, err := readEntry(txn, k)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Set(_ context.Context, key string, value []byte) error {
	for i := 0; i < badgerSetAttempts; i++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			var current int64
			e, err := readEntry(txn, key)
			switch {
			case err == nil:
				current = e.Version
			case !errors.Is(err, ErrNotFound):
				return err
			}
			return txn.Set([]byte(key), encodeVersioned(current+1, value))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("set %s: too much contention", key)
}

func (s *BadgerStore) CompareAndSwap(_ context.Context, key string, value []byte, expected int64) (int64, error) {
	var next int64
	err := s.db.Update(func(txn *badger.Txn) error {
		var current int64
		e, err := readEntry(txn, key)
		switch {
		case err == nil:
			current = e.Version
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if current != expected {
			return ErrConflict
		}
		next = current + 1
		return txn.Set([]byte(key), encodeVersioned(next, value))
	})
	if errors.Is(err, badger.ErrConflict) || errors.Is(err, ErrConflict) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("compare-and-swap %s: %w", key, err)
	}
	return next, nil
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Scan(_ context.Context, prefix string) ([]*Entry, error) {
	var out []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			version, value, err := decodeVersioned(raw)
			if err != nil {
				return err
			}
			out = append(out, &Entry{Key: string(item.KeyCopy(nil)), Value: value, Version: version})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func readEntry(txn *badger.Txn, key string) (*Entry, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	version, value, err := decodeVersioned(raw)
	if err != nil {
		return nil, err
	}
	return &Entry{Key: key, Value: value, Version: version}, nil
}
