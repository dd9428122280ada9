// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgAlert implements the Message interface and represents the legacy
// network alert system message. The payload and signature are carried
// opaquely since verification of the retired alert key is out of scope;
// nodes that still emit this message are simply relayed or ignored.
type MsgAlert struct {
	Payload   []byte
	Signature []byte
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgAlert) BtcDecode(r io.Reader, pver uint32) error {
	payload, err := ReadVarBytes(r, MaxMessagePayload, "alert payload")
	if err != nil {
		return err
	}
	msg.Payload = payload

	signature, err := ReadVarBytes(r, MaxMessagePayload, "alert signature")
	if err != nil {
		return err
	}
	msg.Signature = signature

	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgAlert) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarBytes(w, msg.Payload); err != nil {
		return err
	}
	return WriteVarBytes(w, msg.Signature)
}

// Command returns the protocol command string for the message.
func (msg *MsgAlert) Command() string {
	return CmdAlert
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgAlert) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgAlert returns a new alert message with the given opaque payload
// and signature.
func NewMsgAlert(payload []byte, signature []byte) *MsgAlert {
	return &MsgAlert{Payload: payload, Signature: signature}
}
