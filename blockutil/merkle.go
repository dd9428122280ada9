// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockutil

import "github.com/btcfullnode/node/util/chainhash"

// BuildMerkleTreeStore builds a Merkle tree from the given transaction
// hashes and returns the root. Per spec.md §4.2, at each odd-length level
// the last element is duplicated before pairing; the root is the
// double-SHA256 of the final pair.
func BuildMerkleTreeStore(txHashes []*chainhash.Hash) *chainhash.Hash {
	if len(txHashes) == 0 {
		zero := chainhash.ZeroHash
		return &zero
	}

	level := make([]*chainhash.Hash, len(txHashes))
	copy(level, txHashes)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]*chainhash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashMerkleBranches(level[i], level[i+1]))
		}
		level = next
	}

	return level[0]
}

// hashMerkleBranches returns the double-SHA256 of the concatenation of two
// hashes, the combining step of a Merkle tree.
func hashMerkleBranches(left, right *chainhash.Hash) *chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	h := chainhash.DoubleHashH(buf[:])
	return &h
}
