package store

import (
	"github.com/pkg/errors"

	"github.com/btcfullnode/node/database"
	"github.com/btcfullnode/node/util/chainhash"
)

// ErrNotFound is returned by Get/GetUndo/GetTransactionOutput when no
// record exists for the requested key, and by GetChainHead/
// GetVerifiedChainHead before any chain head has ever been set.
var ErrNotFound = errors.New("store: record not found")

// Store is a pruned block store: the header/chain-work index, reorg-window
// undo data, and UTXO set of spec.md §4.3, built generically over a
// database.Database so it runs identically against database/memdb and
// database/leveldbstore.
type Store struct {
	db database.Database
}

// New wraps db as a Store. db may be either a memdb.MemDB or a
// leveldbstore.LevelDBStore (or any other database.Database).
func New(db database.Database) *Store {
	return &Store{db: db}
}

// Put writes a block's header/chain-work record and its undo data.
// Undoable may be nil for a block that carries no undo data of its own
// (not expected in normal operation, but accepted defensively).
func (s *Store) Put(block *StoredBlock, undoable *StoredUndoableBlock) error {
	hash := block.Hash()

	blockEnc, err := encodeStoredBlock(block)
	if err != nil {
		return errors.Wrap(err, "encoding stored block")
	}
	if err := s.db.Put(blockKey(&hash), blockEnc); err != nil {
		return err
	}

	if undoable == nil {
		return nil
	}
	undoEnc, err := encodeUndoableBlock(undoable)
	if err != nil {
		return errors.Wrap(err, "encoding undoable block")
	}
	return s.db.Put(undoKey(&hash), undoEnc)
}

// Get returns the header/chain-work record for hash.
func (s *Store) Get(hash *chainhash.Hash) (*StoredBlock, error) {
	data, err := s.db.Get(blockKey(hash))
	if err == database.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeStoredBlock(data)
}

// Has reports whether a block record exists for hash.
func (s *Store) Has(hash *chainhash.Hash) (bool, error) {
	return s.db.Has(blockKey(hash))
}

// GetUndo returns the undo data for hash, which may be either the block's
// full transaction list or, if the block has since been finalized, just
// its TransactionOutputChanges.
func (s *Store) GetUndo(hash *chainhash.Hash) (*StoredUndoableBlock, error) {
	data, err := s.db.Get(undoKey(hash))
	if err == database.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUndoableBlock(data)
}

// Finalize replaces hash's stored full transaction list with just the
// TransactionOutputChanges it caused, once the block has fallen far
// enough behind the chain head that a reorg past it is no longer
// entertained (spec.md §3, §4.3).
func (s *Store) Finalize(hash *chainhash.Hash, changes *TransactionOutputChanges) error {
	enc, err := encodeUndoableBlock(&StoredUndoableBlock{TxOutChanges: changes})
	if err != nil {
		return errors.Wrap(err, "encoding finalized undo record")
	}
	return s.db.Put(undoKey(hash), enc)
}

// GetChainHead returns the block at the tip of the best known chain, as
// last set by SetChainHead.
func (s *Store) GetChainHead() (*StoredBlock, error) {
	return s.getNamedHead(keyChainHead)
}

// SetChainHead records block as the tip of the best known chain.
func (s *Store) SetChainHead(block *StoredBlock) error {
	return s.setNamedHead(keyChainHead, block)
}

// GetVerifiedChainHead returns the highest block that has completed full
// verification (script execution, UTXO validation), which may lag behind
// GetChainHead while block bodies are still being validated.
func (s *Store) GetVerifiedChainHead() (*StoredBlock, error) {
	return s.getNamedHead(keyVerifiedHead)
}

// SetVerifiedChainHead records block as the highest fully-verified block.
func (s *Store) SetVerifiedChainHead(block *StoredBlock) error {
	return s.setNamedHead(keyVerifiedHead, block)
}

func (s *Store) getNamedHead(key string) (*StoredBlock, error) {
	data, err := s.db.Get([]byte(key))
	if err == database.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var hash chainhash.Hash
	if err := hash.SetBytes(data); err != nil {
		return nil, err
	}
	return s.Get(&hash)
}

func (s *Store) setNamedHead(key string, block *StoredBlock) error {
	hash := block.Hash()
	return s.db.Put([]byte(key), hash.CloneBytes())
}

// GetTransactionOutput returns the unspent output at (hash, index), or
// ErrNotFound if it does not exist or has already been spent.
func (s *Store) GetTransactionOutput(hash *chainhash.Hash, index uint32) (*StoredTxOut, error) {
	data, err := s.db.Get(utxoKey(hash, index))
	if err == database.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeTxOut(data)
}

// AddUnspentTransactionOutput inserts txOut into the UTXO set.
func (s *Store) AddUnspentTransactionOutput(txOut *StoredTxOut) error {
	enc, err := encodeTxOut(txOut)
	if err != nil {
		return errors.Wrap(err, "encoding utxo entry")
	}
	return s.db.Put(utxoKey(&txOut.Hash, txOut.Index), enc)
}

// RemoveUnspentTransactionOutput removes the output at (hash, index) from
// the UTXO set, recording that it has been spent.
func (s *Store) RemoveUnspentTransactionOutput(hash *chainhash.Hash, index uint32) error {
	return s.db.Delete(utxoKey(hash, index))
}

// Batch is an atomic batch of store mutations. It embeds database.Batch,
// so it satisfies database.DataAccessor, but callers should go through
// BatchStore (below) rather than writing raw keys directly.
type Batch struct {
	database.Batch
}

// BeginDatabaseBatchWrite starts a new atomic batch (spec.md §4.3's
// beginDatabaseBatchWrite). Use the returned BatchStore to perform writes,
// then call its Commit or Discard.
func (s *Store) BeginDatabaseBatchWrite() (*BatchStore, error) {
	b, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchStore{Store: Store{db: &batchAsDatabase{b}}, batch: b}, nil
}

// BatchStore is a Store whose writes accumulate in an uncommitted batch
// until CommitDatabaseBatchWrite is called. Reads observe the batch's own
// pending writes (per database.Batch semantics) layered over the
// underlying store's committed state.
type BatchStore struct {
	Store
	batch database.Batch
}

// CommitDatabaseBatchWrite atomically applies every write made through the
// batch store (spec.md §4.3's commitDatabaseBatchWrite).
func (b *BatchStore) CommitDatabaseBatchWrite() error {
	return b.batch.Commit()
}

// AbortDatabaseBatchWrite discards every write made through the batch
// store without applying any of them (spec.md §4.3's
// abortDatabaseBatchWrite).
func (b *BatchStore) AbortDatabaseBatchWrite() {
	b.batch.Discard()
}

// batchAsDatabase adapts a database.Batch to database.Database so that a
// BatchStore can reuse Store's methods unchanged. Begin/Close are never
// called on a batch-backed store: nested batches and closing mid-batch are
// both programmer errors.
type batchAsDatabase struct {
	database.Batch
}

func (b *batchAsDatabase) Begin() (database.Batch, error) {
	return nil, errors.New("store: cannot begin a nested batch on a batch-backed store")
}

func (b *batchAsDatabase) Close() error {
	return errors.New("store: cannot close a batch-backed store directly")
}
