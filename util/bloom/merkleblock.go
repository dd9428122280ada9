// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// calcTreeWidth returns the number of nodes at the given height of a
// Merkle tree over numTx leaves, height 0 being the leaves themselves.
func calcTreeWidth(height uint32, numTx uint32) uint32 {
	return (numTx + (1 << height) - 1) >> height
}

// calcTreeHeight returns the height of the root of a Merkle tree over
// numTx leaves.
func calcTreeHeight(numTx uint32) uint32 {
	var height uint32
	for calcTreeWidth(height, numTx) > 1 {
		height++
	}
	return height
}

// calcMerkleHash recomputes the hash at (height, pos), height 0 being a
// leaf, by recursively combining its children.
func calcMerkleHash(height, pos uint32, leaves []*chainhash.Hash, numTx uint32) *chainhash.Hash {
	if height == 0 {
		return leaves[pos]
	}

	left := calcMerkleHash(height-1, pos*2, leaves, numTx)
	right := left
	if pos*2+1 < calcTreeWidth(height-1, numTx) {
		right = calcMerkleHash(height-1, pos*2+1, leaves, numTx)
	}
	return hashMerkleBranches(left, right)
}

// hashMerkleBranches returns the double-SHA256 of the concatenation of two
// hashes, mirroring blockutil.BuildMerkleTreeStore's combining step.
func hashMerkleBranches(left, right *chainhash.Hash) *chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	h := chainhash.DoubleHashH(buf[:])
	return &h
}

// traverseAndBuild walks the Merkle tree top-down, recording in bits
// whether each visited node's subtree contains a matched leaf, and
// appending to hashes the hash of every subtree that can be pruned (an
// unmatched subtree, or a matched leaf itself): the classic Bitcoin Core
// partial Merkle tree construction (BIP37).
func traverseAndBuild(height, pos uint32, numTx uint32, leaves []*chainhash.Hash,
	matches []bool, bits *[]bool, hashes *[]*chainhash.Hash) {

	parentOfMatch := false
	from := pos << height
	to := (pos + 1) << height
	for i := from; i < to && i < numTx; i++ {
		if matches[i] {
			parentOfMatch = true
			break
		}
	}
	*bits = append(*bits, parentOfMatch)

	if height == 0 || !parentOfMatch {
		*hashes = append(*hashes, calcMerkleHash(height, pos, leaves, numTx))
		return
	}

	traverseAndBuild(height-1, pos*2, numTx, leaves, matches, bits, hashes)
	if pos*2+1 < calcTreeWidth(height-1, numTx) {
		traverseAndBuild(height-1, pos*2+1, numTx, leaves, matches, bits, hashes)
	}
}

// packFlagBits packs bits into bytes LSB-first, the encoding spec.md §4.1
// and BIP37 require for MsgMerkleBlock.Flags.
func packFlagBits(bits []bool) []byte {
	flags := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			flags[i/8] |= 1 << uint(i%8)
		}
	}
	return flags
}

// NewMerkleBlock builds the filtered reply to a getdata requesting a
// filtered block (spec.md §4.1, §4.5): a block header plus the partial
// Merkle tree proving which of the block's transactions matched filter.
// filter is updated in place as matching outputs are found, per its
// UpdateFlags. It also returns the indices of the block's transactions
// that matched, in block order.
func NewMerkleBlock(block *blockutil.Block, filter *Filter) (*wire.MsgMerkleBlock, []uint32) {
	txns := block.Transactions()
	numTx := uint32(len(txns))

	leaves := make([]*chainhash.Hash, numTx)
	matches := make([]bool, numTx)
	var matchedIndices []uint32
	for i, tx := range txns {
		leaves[i] = tx.Hash()
		if filter.MatchTxAndUpdate(tx.MsgTx()) {
			matches[i] = true
			matchedIndices = append(matchedIndices, uint32(i))
		}
	}

	var bits []bool
	var hashes []*chainhash.Hash
	if numTx > 0 {
		traverseAndBuild(calcTreeHeight(numTx), 0, numTx, leaves, matches, &bits, &hashes)
	}

	msg := wire.NewMsgMerkleBlock(&block.MsgBlock().Header)
	msg.Transactions = numTx
	for _, hash := range hashes {
		_ = msg.AddTxHash(hash)
	}
	msg.Flags = packFlagBits(bits)

	return msg, matchedIndices
}
