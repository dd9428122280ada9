// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgMemPool implements the Message interface and represents a request for
// the remote peer's transaction pool inventory. It carries no payload and
// requires BIP0035Version or later.
type MsgMemPool struct{}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgMemPool) BtcDecode(r io.Reader, pver uint32) error {
	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgMemPool) BtcEncode(w io.Writer, pver uint32) error {
	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgMemPool) Command() string {
	return CmdMemPool
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgMemPool) MaxPayloadLength(pver uint32) uint32 {
	return 0
}

// NewMsgMemPool returns a new mempool message.
func NewMsgMemPool() *MsgMemPool {
	return &MsgMemPool{}
}
