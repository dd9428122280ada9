// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPing implements the Message interface and represents a ping message.
// It is used to confirm a connection is still valid. Protocol versions
// after BIP0031Version carry a random nonce so the corresponding pong
// can be matched; earlier versions carry no payload.
type MsgPing struct {
	Nonce uint64
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgPing) BtcDecode(r io.Reader, pver uint32) error {
	if pver > BIP0031Version {
		return ReadElement(r, &msg.Nonce)
	}
	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgPing) BtcEncode(w io.Writer, pver uint32) error {
	if pver > BIP0031Version {
		return WriteElement(w, msg.Nonce)
	}
	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgPing) Command() string {
	return CmdPing
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgPing) MaxPayloadLength(pver uint32) uint32 {
	if pver > BIP0031Version {
		return 8
	}
	return 0
}

// NewMsgPing returns a new ping message carrying the given nonce.
func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}
