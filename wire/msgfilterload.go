// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxFilterLoadHashFuncs is the maximum number of hash functions allowed
// in a filterload message.
const MaxFilterLoadHashFuncs = 50

// MaxFilterLoadFilterSize is the maximum size in bytes of a filter allowed
// in a filterload message.
const MaxFilterLoadFilterSize = 36000

// MsgFilterLoad implements the Message interface and represents a request
// for the receiving peer to load a bloom filter over its outgoing
// transaction relay, requires BIP0037Version or later.
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     BloomUpdateType
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgFilterLoad) BtcDecode(r io.Reader, pver uint32) error {
	filter, err := ReadVarBytes(r, MaxFilterLoadFilterSize, "filterload filter size")
	if err != nil {
		return err
	}
	msg.Filter = filter

	if err := readElements(r, &msg.HashFuncs, &msg.Tweak, &msg.Flags); err != nil {
		return err
	}

	if msg.HashFuncs > MaxFilterLoadHashFuncs {
		str := fmt.Sprintf("too many filter hash functions [count %d, max %d]", msg.HashFuncs, MaxFilterLoadHashFuncs)
		return messageError("MsgFilterLoad.BtcDecode", str)
	}

	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgFilterLoad) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.Filter) > MaxFilterLoadFilterSize {
		str := fmt.Sprintf("filterload filter size too large [size %d, max %d]", len(msg.Filter), MaxFilterLoadFilterSize)
		return messageError("MsgFilterLoad.BtcEncode", str)
	}

	if msg.HashFuncs > MaxFilterLoadHashFuncs {
		str := fmt.Sprintf("too many filter hash functions [count %d, max %d]", msg.HashFuncs, MaxFilterLoadHashFuncs)
		return messageError("MsgFilterLoad.BtcEncode", str)
	}

	if err := WriteVarBytes(w, msg.Filter); err != nil {
		return err
	}

	return writeElements(w, msg.HashFuncs, msg.Tweak, msg.Flags)
}

// Command returns the protocol command string for the message.
func (msg *MsgFilterLoad) Command() string {
	return CmdFilterLoad
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgFilterLoad) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterLoadFilterSize)) + MaxFilterLoadFilterSize + 9
}

// NewMsgFilterLoad returns a new filterload message with the given fields.
func NewMsgFilterLoad(filter []byte, hashFuncs uint32, tweak uint32, flags BloomUpdateType) *MsgFilterLoad {
	return &MsgFilterLoad{
		Filter:    filter,
		HashFuncs: hashFuncs,
		Tweak:     tweak,
		Flags:     flags,
	}
}
