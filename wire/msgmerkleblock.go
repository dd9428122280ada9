// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcfullnode/node/util/chainhash"
)

// maxFlagsPerMerkleBlock is the maximum number of flag bytes that could
// possibly fit into a merkleblock message given MaxMessagePayload.
const maxFlagsPerMerkleBlock = MaxMessagePayload / 8

// MsgMerkleBlock implements the Message interface and represents a reply
// to a filtered getdata request, carrying a block header plus the partial
// merkle tree proving which transactions matched a previously loaded
// bloom filter.
type MsgMerkleBlock struct {
	Header       BlockHeader
	Transactions uint32
	Hashes       []*chainhash.Hash
	Flags        []byte
}

// AddTxHash adds a new transaction hash to the merkle block.
func (msg *MsgMerkleBlock) AddTxHash(hash *chainhash.Hash) error {
	if len(msg.Hashes)+1 > maxTxPerBlock {
		str := fmt.Sprintf("too many tx hashes for message [max %d]", maxTxPerBlock)
		return messageError("MsgMerkleBlock.AddTxHash", str)
	}
	msg.Hashes = append(msg.Hashes, hash)
	return nil
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgMerkleBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := readBlockHeader(r, pver, &msg.Header); err != nil {
		return err
	}

	if err := ReadElement(r, &msg.Transactions); err != nil {
		return err
	}

	hashCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if hashCount > maxTxPerBlock {
		str := fmt.Sprintf("too many tx hashes for message [count %d, max %d]", hashCount, maxTxPerBlock)
		return messageError("MsgMerkleBlock.BtcDecode", str)
	}

	hashes := make([]chainhash.Hash, hashCount)
	msg.Hashes = make([]*chainhash.Hash, 0, hashCount)
	for i := uint64(0); i < hashCount; i++ {
		hash := &hashes[i]
		if err := ReadElement(r, hash); err != nil {
			return err
		}
		msg.Hashes = append(msg.Hashes, hash)
	}

	flags, err := ReadVarBytes(r, maxFlagsPerMerkleBlock, "merkle block flags size")
	if err != nil {
		return err
	}
	msg.Flags = flags

	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgMerkleBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeBlockHeader(w, pver, &msg.Header); err != nil {
		return err
	}

	if err := WriteElement(w, msg.Transactions); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.Hashes))); err != nil {
		return err
	}
	for _, hash := range msg.Hashes {
		if err := WriteElement(w, hash); err != nil {
			return err
		}
	}

	return WriteVarBytes(w, msg.Flags)
}

// Command returns the protocol command string for the message.
func (msg *MsgMerkleBlock) Command() string {
	return CmdMerkleBlock
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgMerkleBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgMerkleBlock returns a new merkleblock message for the given
// header.
func NewMsgMerkleBlock(bh *BlockHeader) *MsgMerkleBlock {
	return &MsgMerkleBlock{
		Header:       *bh,
		Transactions: 0,
		Hashes:       make([]*chainhash.Hash, 0, defaultTransactionAlloc),
		Flags:        make([]byte, 0, 8),
	}
}
