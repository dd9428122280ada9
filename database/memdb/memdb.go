// Package memdb implements database.Database as a plain Go map guarded by
// a mutex. It is the reference backend spec.md §4.3 requires; it keeps no
// data on disk.
package memdb

import (
	"bytes"
	"sort"
	"sync"

	"github.com/btcfullnode/node/database"
)

// MemDB is an in-memory, mutex-guarded key-value store.
type MemDB struct {
	mtx  sync.RWMutex
	data map[string][]byte
}

// New returns a new, empty MemDB.
func New() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

// Get returns the value stored for key, or database.ErrNotFound.
func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()

	v, ok := db.data[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Has reports whether key is present.
func (db *MemDB) Has(key []byte) (bool, error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()

	_, ok := db.data[string(key)]
	return ok, nil
}

// Put stores value under key, overwriting any existing value.
func (db *MemDB) Put(key []byte, value []byte) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	db.data[string(key)] = v
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *MemDB) Delete(key []byte) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	delete(db.data, string(key))
	return nil
}

// NewIterator returns an Iterator over every key sharing prefix, in sorted
// key order, as of the moment NewIterator was called.
func (db *MemDB) NewIterator(prefix []byte) database.Iterator {
	db.mtx.RLock()
	defer db.mtx.RUnlock()

	var keys []string
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = db.data[k]
	}

	return &memIterator{keys: keys, values: values, pos: -1}
}

// Begin starts a new atomic batch over db.
func (db *MemDB) Begin() (database.Batch, error) {
	return newBatch(db), nil
}

// Close is a no-op for MemDB; there is nothing to release.
func (db *MemDB) Close() error {
	return nil
}

type memIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (it *memIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *memIterator) Key() []byte {
	return []byte(it.keys[it.pos])
}

func (it *memIterator) Value() []byte {
	return it.values[it.pos]
}

func (it *memIterator) Close() error {
	return nil
}
