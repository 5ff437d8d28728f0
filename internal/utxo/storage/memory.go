package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const memStoreCapacity = 4 << 20

// MemStore is an in-memory ordered store backed by a LevelDB memtable.
type MemStore struct {
	db *memdb.DB
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{db: memdb.New(comparer.DefaultComparer, memStoreCapacity)}
}

func (s *MemStore) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key)
	if errors.Is(err, ldberrors.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memdb get: %w", err)
	}
	return value, nil
}

func (s *MemStore) Has(key []byte) (bool, error) {
	return s.db.Contains(key), nil
}

func (s *MemStore) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

func (s *MemStore) Delete(key []byte) error {
	err := s.db.Delete(key)
	if errors.Is(err, ldberrors.ErrNotFound) {
		return nil
	}
	return err
}

func (s *MemStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := s.db.NewIterator(util.BytesPrefix(prefix))
	defer it.Release()
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// Len returns the number of keys held.
func (s *MemStore) Len() int {
	return s.db.Len()
}

func (s *MemStore) Close() error {
	s.db.Reset()
	return nil
}
