// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPong implements the Message interface and represents a pong message
// sent in reply to a ping, echoing back the nonce it carried.
type MsgPong struct {
	Nonce uint64
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgPong) BtcDecode(r io.Reader, pver uint32) error {
	return ReadElement(r, &msg.Nonce)
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgPong) BtcEncode(w io.Writer, pver uint32) error {
	return WriteElement(w, msg.Nonce)
}

// Command returns the protocol command string for the message.
func (msg *MsgPong) Command() string {
	return CmdPong
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgPong) MaxPayloadLength(pver uint32) uint32 {
	return 8
}

// NewMsgPong returns a new pong message echoing the given nonce.
func NewMsgPong(nonce uint64) *MsgPong {
	return &MsgPong{Nonce: nonce}
}
