// Package kvstore defines the small key-value store the login store persists into.
package kvstore

import "errors"

// NoOp can be returned from an Update callback to leave the value untouched.
var NoOp = errors.New("noop")

// KVStore is a simple key-value store interface
type KVStore interface {
	// Get retrieves a value for a given key. Returns nil if not found.
	Get(key []byte) ([]byte, error)

	// Set stores a value for a given key
	Set(key []byte, value []byte) error

	// Delete removes a key and its value
	Delete(key []byte) error

	// Update atomically reads a value and replaces it with what f returns.
	// f gets nil if the key doesn't exist; returning nil deletes the key.
	Update(key []byte, f func([]byte) ([]byte, error)) error

	// Scan calls fn for every key starting with prefix, in key order, until fn returns false.
	Scan(prefix []byte, fn func(key []byte, value []byte) bool) error

	// Close releases any resources held by the store
	Close() error
}
