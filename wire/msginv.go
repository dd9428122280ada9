// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxInvPerMsg is the maximum number of inventory vectors that can be in a
// single inv message.
const MaxInvPerMsg = 50000

// MsgInv implements the Message interface and represents an announcement of
// objects (transactions, blocks) the sender has, or is advertising as newly
// mined/accepted.
type MsgInv struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (msg *MsgInv) AddInvVect(iv *InvVect) error {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [max %d]", MaxInvPerMsg)
		return messageError("MsgInv.AddInvVect", str)
	}
	msg.InvList = append(msg.InvList, iv)
	return nil
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [count %d, max %d]", count, MaxInvPerMsg)
		return messageError("MsgInv.BtcDecode", str)
	}

	invList := make([]InvVect, count)
	msg.InvList = make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := &invList[i]
		if err := readInvVect(r, iv); err != nil {
			return err
		}
		msg.InvList = append(msg.InvList, iv)
	}
	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) error {
	count := len(msg.InvList)
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [count %d, max %d]", count, MaxInvPerMsg)
		return messageError("MsgInv.BtcEncode", str)
	}

	if err := WriteVarInt(w, uint64(count)); err != nil {
		return err
	}

	for _, iv := range msg.InvList {
		if err := writeInvVect(w, iv); err != nil {
			return err
		}
	}
	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgInv) Command() string {
	return CmdInv
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgInv) MaxPayloadLength(pver uint32) uint32 {
	return MaxVarIntPayload + (MaxInvPerMsg * InvVectSize)
}

// NewMsgInv returns a new empty inv message.
func NewMsgInv() *MsgInv {
	return &MsgInv{InvList: make([]*InvVect, 0, defaultInvListAlloc)}
}

// NewMsgInvSizeHint returns a new empty inv message preallocated to hold
// the given number of entries.
func NewMsgInvSizeHint(sizeHint uint) *MsgInv {
	if sizeHint > MaxInvPerMsg {
		sizeHint = MaxInvPerMsg
	}
	return &MsgInv{InvList: make([]*InvVect, 0, sizeHint)}
}

const defaultInvListAlloc = 1000
