// Package database defines the minimal key-value storage abstraction the
// pruned block store (package store) is built on, so that the reference
// in-memory implementation and a disk-backed implementation can share a
// single FullPrunedBlockStore on top of either. This is the pluggable
// "disk backends are pluggable behind the store interface" seam spec.md §1
// calls for.
package database

import "errors"

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("database: key not found")

// DataAccessor is the read/write surface common to both a Database and a
// Batch: key-value get/put/delete plus prefix iteration.
type DataAccessor interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	NewIterator(prefix []byte) Iterator
}

// Iterator walks the key-value pairs sharing a prefix in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Close() error
}

// Batch accumulates mutations for atomic application: spec.md §4.3's
// beginDatabaseBatchWrite/commitDatabaseBatchWrite/abortDatabaseBatchWrite
// is implemented by Database.Begin/Batch.Commit/Batch.Discard.
type Batch interface {
	DataAccessor

	// Commit applies every mutation made on the batch atomically.
	Commit() error

	// Discard abandons every mutation made on the batch.
	Discard()
}

// Database is a key-value store that can begin atomic batches and close
// itself. Implementations: database/memdb (in-memory reference) and
// database/leveldbstore (github.com/btcsuite/goleveldb-backed).
type Database interface {
	DataAccessor

	// Begin starts a new atomic batch of mutations.
	Begin() (Batch, error)

	// Close releases any resources held by the database.
	Close() error
}
