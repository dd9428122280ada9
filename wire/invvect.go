// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcfullnode/node/util/chainhash"
)

// InvVectSize is the size in bytes of an inventory vector: a 4-byte type
// followed by a 32-byte hash.
const InvVectSize = 4 + chainhash.HashSize

// InvVect defines an inventory vector, used to tell a peer what a node
// already has or wants.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func readInvVect(r io.Reader, iv *InvVect) error {
	return readElements(r, &iv.Type, &iv.Hash)
}

func writeInvVect(w io.Writer, iv *InvVect) error {
	return writeElements(w, iv.Type, &iv.Hash)
}
