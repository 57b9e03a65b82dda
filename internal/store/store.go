// Package store is the byte-level key/value layer under the account state.
package store

import "errors"

var (
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)

// KV is an ordered byte key/value store with atomic batches.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Apply writes all operations or none of them.
	Apply(ops []Op) error
	// Iterate visits every key with the given prefix in ascending order.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// OpType is a batch operation kind.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
)

// Op is a single write in a batch.
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// PrefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
