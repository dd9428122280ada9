// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxFilterAddDataSize is the maximum size in bytes of a data element
// allowed in a filteradd message.
const MaxFilterAddDataSize = 520

// MsgFilterAdd implements the Message interface and represents a request
// to add the given data element to an existing bloom filter, requires
// BIP0037Version or later.
type MsgFilterAdd struct {
	Data []byte
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgFilterAdd) BtcDecode(r io.Reader, pver uint32) error {
	data, err := ReadVarBytes(r, MaxFilterAddDataSize, "filteradd data")
	if err != nil {
		return err
	}
	msg.Data = data
	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgFilterAdd) BtcEncode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, msg.Data)
}

// Command returns the protocol command string for the message.
func (msg *MsgFilterAdd) Command() string {
	return CmdFilterAdd
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgFilterAdd) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterAddDataSize)) + MaxFilterAddDataSize
}

// NewMsgFilterAdd returns a new filteradd message carrying data.
func NewMsgFilterAdd(data []byte) *MsgFilterAdd {
	return &MsgFilterAdd{Data: data}
}
