package memdb

import (
	"github.com/btcfullnode/node/database"
)

// batch accumulates puts and deletes against a MemDB, applying them all at
// once on Commit and leaving the underlying store untouched if Discard is
// called instead — the atomicity guarantee spec.md §4.3 requires.
type batch struct {
	db      *MemDB
	puts    map[string][]byte
	deletes map[string]struct{}
}

func newBatch(db *MemDB) *batch {
	return &batch{
		db:      db,
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Get first checks the batch's own pending mutations so that reads within
// a batch observe its own not-yet-committed writes, then falls back to the
// underlying database.
func (b *batch) Get(key []byte) ([]byte, error) {
	if _, deleted := b.deletes[string(key)]; deleted {
		return nil, database.ErrNotFound
	}
	if v, ok := b.puts[string(key)]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	return b.db.Get(key)
}

func (b *batch) Has(key []byte) (bool, error) {
	if _, deleted := b.deletes[string(key)]; deleted {
		return false, nil
	}
	if _, ok := b.puts[string(key)]; ok {
		return true, nil
	}
	return b.db.Has(key)
}

func (b *batch) Put(key []byte, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	delete(b.deletes, string(key))
	b.puts[string(key)] = v
	return nil
}

func (b *batch) Delete(key []byte) error {
	delete(b.puts, string(key))
	b.deletes[string(key)] = struct{}{}
	return nil
}

// NewIterator iterates the underlying database's committed state; pending
// batch mutations are not reflected, matching the teacher's "batch writes
// are invisible until commit" convention.
func (b *batch) NewIterator(prefix []byte) database.Iterator {
	return b.db.NewIterator(prefix)
}

// Commit applies every accumulated put and delete to the underlying
// MemDB atomically with respect to other batch commits.
func (b *batch) Commit() error {
	b.db.mtx.Lock()
	defer b.db.mtx.Unlock()

	for k := range b.deletes {
		delete(b.db.data, k)
	}
	for k, v := range b.puts {
		b.db.data[k] = v
	}
	return nil
}

// Discard abandons every accumulated mutation.
func (b *batch) Discard() {
	b.puts = make(map[string][]byte)
	b.deletes = make(map[string]struct{})
}
