package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

const defaultBadgerDir = "./data/participant"

type badgerStore struct {
	db *badger.DB
}

func NewBadger(dir string) (Store, error) {
	if dir == "" {
		dir = defaultBadgerDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dir, "badger.db"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger database: %w", err)
	}

	return &badgerStore{db: db}, nil
}

func (s *badgerStore) Load(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}

			return fmt.Errorf("failed to get key: %w", err)
		}

		data, err = item.ValueCopy(nil)

		return err
	})

	return data, err
}

func (s *badgerStore) Save(_ context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *badgerStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
