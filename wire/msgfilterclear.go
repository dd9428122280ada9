// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgFilterClear implements the Message interface and represents a
// request to remove a previously set bloom filter, requires BIP0037Version
// or later. It carries no payload.
type MsgFilterClear struct{}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgFilterClear) BtcDecode(r io.Reader, pver uint32) error {
	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgFilterClear) BtcEncode(w io.Writer, pver uint32) error {
	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgFilterClear) Command() string {
	return CmdFilterClear
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgFilterClear) MaxPayloadLength(pver uint32) uint32 {
	return 0
}

// NewMsgFilterClear returns a new filterclear message.
func NewMsgFilterClear() *MsgFilterClear {
	return &MsgFilterClear{}
}
