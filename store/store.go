// Package store implements the pruned block store of spec.md §4.3: header
// and chain-work index, UTXO set, and reorg-window undo data, against a
// pluggable database.Database key-value backend (package
// database/memdb for the in-memory reference, database/leveldbstore for
// the disk-backed implementation).
package store

import (
	"math/big"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// StoredBlock is a block header plus the chain metadata derived from it:
// cumulative chain work and height (spec.md §3).
type StoredBlock struct {
	Header    wire.BlockHeader
	ChainWork *big.Int
	Height    uint32
}

// Hash returns the identity hash of the stored block's header.
func (b *StoredBlock) Hash() chainhash.Hash {
	return b.Header.BlockHash()
}

// StoredTxOut is a single unspent transaction output entry, keyed by
// (hash, index) in the UTXO set (spec.md §3).
type StoredTxOut struct {
	Hash       chainhash.Hash
	Index      uint32
	Value      int64
	PkScript   []byte
	Height     uint32
	IsCoinbase bool
}

// TransactionOutputChanges records the UTXO deltas a block caused:
// outputs it spent (to be recreated on disconnect) and outputs it created
// (to be deleted on disconnect). Retaining only this record, instead of
// the block's full transaction list, is what "finalizing" a block means
// (spec.md §3, §4.3).
type TransactionOutputChanges struct {
	Spent   []*StoredTxOut
	Created []*StoredTxOut
}

// StoredUndoableBlock carries whatever is needed to reverse a block's
// effect on the UTXO set. Before finalization it carries both the full
// transaction list and the TransactionOutputChanges connecting it
// produced (the latter is what actually drives undo; the former is kept
// so the block can still be replayed during a reorganize). Once
// finalized, Transactions is dropped and only the smaller TxOutChanges
// survives (spec.md §3: "either the full transaction list ... OR, once
// finalized ..., only a TransactionOutputChanges record").
type StoredUndoableBlock struct {
	Transactions []*wire.MsgTx
	TxOutChanges *TransactionOutputChanges
}

// IsFinalized reports whether the undo block has already been reduced to
// just its TransactionOutputChanges.
func (u *StoredUndoableBlock) IsFinalized() bool {
	return u.Transactions == nil && u.TxOutChanges != nil
}
