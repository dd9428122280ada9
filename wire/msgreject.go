// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcfullnode/node/util/chainhash"
)

// MaxRejectReasonLen is the maximum length of the human-readable reject
// reason string.
const MaxRejectReasonLen = 250

// MsgReject implements the Message interface and represents a reply
// informing the sender that one of its messages was rejected, requires
// RejectVersion or later.
type MsgReject struct {
	// Cmd is the command of the message that was rejected.
	Cmd string

	// Code is the machine-readable reject code.
	Code RejectCode

	// Reason is the human-readable reason for the rejection.
	Reason string

	// Hash identifies the transaction or block that was rejected, and
	// is only present for reject messages in response to tx or block
	// messages.
	Hash chainhash.Hash
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	cmd, err := ReadVarString(r)
	if err != nil {
		return err
	}
	msg.Cmd = cmd

	if err := ReadElement(r, &msg.Code); err != nil {
		return err
	}

	reason, err := ReadVarString(r)
	if err != nil {
		return err
	}
	if len(reason) > MaxRejectReasonLen {
		reason = reason[:MaxRejectReasonLen]
	}
	msg.Reason = reason

	switch msg.Cmd {
	case CmdBlock, CmdTx:
		if err := ReadElement(r, &msg.Hash); err != nil {
			return err
		}
	}

	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.Reason) > MaxRejectReasonLen {
		str := fmt.Sprintf("reject reason too long [len %d, max %d]", len(msg.Reason), MaxRejectReasonLen)
		return messageError("MsgReject.BtcEncode", str)
	}

	if err := WriteVarString(w, msg.Cmd); err != nil {
		return err
	}

	if err := WriteElement(w, msg.Code); err != nil {
		return err
	}

	if err := WriteVarString(w, msg.Reason); err != nil {
		return err
	}

	switch msg.Cmd {
	case CmdBlock, CmdTx:
		if err := WriteElement(w, &msg.Hash); err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgReject) Command() string {
	return CmdReject
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	return MaxVarIntPayload + CommandSize + 1 + MaxVarIntPayload + MaxRejectReasonLen + chainhash.HashSize
}

// NewMsgReject returns a new reject message for the given command, reject
// code and human-readable reason.
func NewMsgReject(command string, code RejectCode, reason string) *MsgReject {
	return &MsgReject{Cmd: command, Code: code, Reason: reason}
}
