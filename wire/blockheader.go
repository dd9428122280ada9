// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/btcfullnode/node/util/chainhash"
)

// BlockHeaderLen is the number of bytes in a classic 80-byte block header:
// 4 (version) + 32 (prev block) + 32 (merkle root) + 4 (timestamp) +
// 4 (bits) + 4 (nonce).
const BlockHeaderLen = 80

// BlockHeader defines information about a block and is used in the bitcoin
// block (MsgBlock) and headers (MsgHeaders) messages.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version int32

	// PrevBlock is the hash of the previous block in the chain.
	PrevBlock chainhash.Hash

	// MerkleRoot is the merkle tree reference to hash of all transactions
	// for the block.
	MerkleRoot chainhash.Hash

	// Timestamp is the time the block was created, with a granularity of
	// one second.
	Timestamp time.Time

	// Bits is the difficulty target for the block, in compact form.
	Bits uint32

	// Nonce is used to generate the block, varied by miners to satisfy
	// the proof of work.
	Nonce uint32
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderLen))
	_ = writeBlockHeader(buf, 0, h)
	return chainhash.DoubleHashH(buf.Bytes())
}

// BtcDecode decodes r using the protocol encoding into the receiver. This
// is part of the Message interface implementation; see readBlockHeader for
// the description used by both block headers and the block message.
func (h *BlockHeader) BtcDecode(r io.Reader, pver uint32) error {
	return readBlockHeader(r, pver, h)
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (h *BlockHeader) BtcEncode(w io.Writer, pver uint32) error {
	return writeBlockHeader(w, pver, h)
}

// NewBlockHeader returns a new BlockHeader using the provided fields.
func NewBlockHeader(version int32, prevBlock, merkleRoot *chainhash.Hash, bits, nonce uint32) *BlockHeader {
	return &BlockHeader{
		Version:    version,
		PrevBlock:  *prevBlock,
		MerkleRoot: *merkleRoot,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}

func readBlockHeader(r io.Reader, pver uint32, h *BlockHeader) error {
	return readElements(r, &h.Version, &h.PrevBlock, &h.MerkleRoot,
		(*int64Time)(&h.Timestamp), &h.Bits, &h.Nonce)
}

func writeBlockHeader(w io.Writer, pver uint32, h *BlockHeader) error {
	return writeElements(w, h.Version, &h.PrevBlock, &h.MerkleRoot,
		uint32(h.Timestamp.Unix()), h.Bits, h.Nonce)
}
