// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockutil

import (
	"math/big"
	"time"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// MaxTimeOffset is the maximum duration a block's timestamp may be ahead of
// the local network-adjusted time before it is rejected (spec.md §3: "time"
// < network-time + 2h).
const MaxTimeOffset = 2 * time.Hour

// Block wraps a wire.MsgBlock, caching its hash and derived Tx wrappers.
type Block struct {
	msgBlock *wire.MsgBlock
	hash     *chainhash.Hash
	txns     []*Tx
}

// NewBlock returns a new Block instance wrapping msgBlock.
func NewBlock(msgBlock *wire.MsgBlock) *Block {
	return &Block{msgBlock: msgBlock}
}

// MsgBlock returns the underlying wire.MsgBlock.
func (b *Block) MsgBlock() *wire.MsgBlock {
	return b.msgBlock
}

// Hash returns the block's double-SHA256 identity hash, computed once and
// cached.
func (b *Block) Hash() *chainhash.Hash {
	if b.hash != nil {
		return b.hash
	}
	h := b.msgBlock.BlockHash()
	b.hash = &h
	return b.hash
}

// Transactions returns the block's transactions wrapped as *Tx, computing
// and caching the wrapper slice on first call.
func (b *Block) Transactions() []*Tx {
	if b.txns != nil {
		return b.txns
	}
	b.txns = make([]*Tx, len(b.msgBlock.Transactions))
	for i, tx := range b.msgBlock.Transactions {
		b.txns[i] = NewTx(tx)
	}
	return b.txns
}

// MerkleRoot computes the Merkle root over the block's transaction hashes.
func (b *Block) MerkleRoot() *chainhash.Hash {
	txns := b.Transactions()
	hashes := make([]*chainhash.Hash, len(txns))
	for i, tx := range txns {
		hashes[i] = tx.Hash()
	}
	return BuildMerkleTreeStore(hashes)
}

// Verify performs the standalone structural checks of spec.md §4.2
// Block.verify: (a) re-derive header hash (implicit in Hash()), (b) check
// PoW, (c) check the Merkle root, (d) verify every transaction
// structurally. Context-dependent checks (timestamp vs. median, difficulty
// retarget, checkpoints) are the block chain engine's responsibility
// (spec.md §4.4 step 3) since they require chain state this type does not
// have access to.
func (b *Block) Verify() error {
	if len(b.msgBlock.Transactions) == 0 {
		return ErrNoTransactions
	}

	if !b.Transactions()[0].IsCoinBase() {
		return ErrFirstTxNotCoinbase
	}
	for _, tx := range b.Transactions()[1:] {
		if tx.IsCoinBase() {
			return ErrMultipleCoinbases
		}
	}

	if err := b.verifyPoW(); err != nil {
		return err
	}

	if err := b.verifyMerkleRoot(); err != nil {
		return err
	}

	seen := make(map[chainhash.Hash]struct{}, len(b.msgBlock.Transactions))
	for _, tx := range b.Transactions() {
		h := *tx.Hash()
		if _, ok := seen[h]; ok {
			return ErrDuplicateTx
		}
		seen[h] = struct{}{}

		if err := tx.Verify(); err != nil {
			return err
		}
	}

	return nil
}

func (b *Block) verifyPoW() error {
	target := CompactToBig(b.msgBlock.Header.Bits)
	if target.Sign() <= 0 {
		return ErrBadPoW
	}

	hash := b.Hash()
	hashNum := hashToBig(hash)
	if hashNum.Cmp(target) > 0 {
		return ErrBadPoW
	}
	return nil
}

func (b *Block) verifyMerkleRoot() error {
	root := b.MerkleRoot()
	if *root != b.msgBlock.Header.MerkleRoot {
		return ErrBadMerkleRoot
	}
	return nil
}

// hashToBig interprets a hash as a little-endian uint256, the convention
// spec.md §3 specifies for comparing a header hash against a target.
func hashToBig(hash *chainhash.Hash) *big.Int {
	var buf chainhash.Hash
	blen := len(hash)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = hash[blen-1-i], hash[i]
	}
	return new(big.Int).SetBytes(buf[:])
}
