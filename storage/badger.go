package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/MajorBarnulf/harsh/config"
)

// BadgerBackend stores keys in a badger database.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens the badger database at cfg.DatabasePath, or an
// in-memory one when cfg.InMemory is set.
func OpenBadger(cfg config.StorageConfig) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(cfg.DatabasePath)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading key %s: %w", key, err)
	}
	return value, true, nil
}

func (b *BadgerBackend) Set(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("error writing key %s: %w", key, err)
	}
	return nil
}

func (b *BadgerBackend) Delete(keys ...string) error {
	if len(keys) == 1 {
		err := b.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(keys[0]))
		})
		if err != nil {
			return fmt.Errorf("error deleting key %s: %w", keys[0], err)
		}
		return nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete([]byte(key)); err != nil {
			return fmt.Errorf("error deleting key %s: %w", key, err)
		}
	}
	return wb.Flush()
}

func (b *BadgerBackend) Scan(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", prefix, err)
	}
	return keys, nil
}

func (b *BadgerBackend) Close() error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return b.db.Close()
}
