// Package leveldbstore implements database.Database on top of
// github.com/btcsuite/goleveldb, the pluggable on-disk backend mentioned
// in spec.md §1/§6. Unlike the teacher's ffldb, which keeps its own
// custom flat-file block store, this backend is a thin goleveldb wrapper:
// the fixed-record on-disk layout spec.md §6 describes is implemented one
// level up, in package store, entirely in terms of the database.Database
// interface, so it works unmodified over either this backend or memdb.
package leveldbstore

import (
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/iterator"
	"github.com/btcsuite/goleveldb/leveldb/util"

	"github.com/btcfullnode/node/database"
)

// LevelDBStore adapts a *leveldb.DB to database.Database.
type LevelDBStore struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a goleveldb database at path.
func Open(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

// Get returns the value stored for key, translating goleveldb's
// ErrNotFound into database.ErrNotFound.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, database.ErrNotFound
	}
	return v, err
}

// Has reports whether key is present.
func (s *LevelDBStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

// Put stores value under key.
func (s *LevelDBStore) Put(key []byte, value []byte) error {
	return s.db.Put(key, value, nil)
}

// Delete removes key.
func (s *LevelDBStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// NewIterator returns an Iterator over every key sharing prefix.
func (s *LevelDBStore) NewIterator(prefix []byte) database.Iterator {
	return &levelIterator{it: s.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

// Begin starts a new goleveldb batch.
func (s *LevelDBStore) Begin() (database.Batch, error) {
	return &levelBatch{db: s.db, batch: new(leveldb.Batch)}, nil
}

// Close closes the underlying goleveldb handle.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool {
	return i.it.Next()
}

func (i *levelIterator) Key() []byte {
	return i.it.Key()
}

func (i *levelIterator) Value() []byte {
	return i.it.Value()
}

func (i *levelIterator) Close() error {
	i.it.Release()
	return nil
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Get(key []byte) ([]byte, error) {
	v, err := b.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, database.ErrNotFound
	}
	return v, err
}

func (b *levelBatch) Has(key []byte) (bool, error) {
	return b.db.Has(key, nil)
}

func (b *levelBatch) Put(key []byte, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelBatch) NewIterator(prefix []byte) database.Iterator {
	return &levelIterator{it: b.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (b *levelBatch) Commit() error {
	return b.db.Write(b.batch, nil)
}

func (b *levelBatch) Discard() {
	b.batch.Reset()
}
