// Package storage provides ordered key-value stores backing the UTXO index.
package storage

import "errors"

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = errors.New("key not found")

// Store is an ordered byte key-value mapping.
type Store interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix in ascending key order
	// until fn returns false. Key and value are only valid during the call.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	Close() error
}
