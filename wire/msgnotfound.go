// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MsgNotFound implements the Message interface and represents a reply to a
// getdata message for items the sender does not have.
type MsgNotFound struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (msg *MsgNotFound) AddInvVect(iv *InvVect) error {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [max %d]", MaxInvPerMsg)
		return messageError("MsgNotFound.AddInvVect", str)
	}
	msg.InvList = append(msg.InvList, iv)
	return nil
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgNotFound) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [count %d, max %d]", count, MaxInvPerMsg)
		return messageError("MsgNotFound.BtcDecode", str)
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
func (msg *MsgNotFound) BtcEncode(w io.Writer, pver uint32) error {
	count := len(msg.InvList)
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [count %d, max %d]", count, MaxInvPerMsg)
		return messageError("MsgNotFound.BtcEncode", str)
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
func (msg *MsgNotFound) Command() string {
	return CmdNotFound
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgNotFound) MaxPayloadLength(pver uint32) uint32 {
	return MaxVarIntPayload + (MaxInvPerMsg * InvVectSize)
}

// NewMsgNotFound returns a new empty notfound message.
func NewMsgNotFound() *MsgNotFound {
	return &MsgNotFound{InvList: make([]*InvVect, 0, defaultInvListAlloc)}
}
