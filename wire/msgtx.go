// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcfullnode/node/util/chainhash"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 1

	// MaxTxInSequenceNum is the maximum sequence number a transaction
	// input can have, which disables its relative locktime/RBF
	// semantics.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// MaxPrevOutIndex is the maximum index a previous output index can
	// be, used by the coinbase input to signal it has no real previous
	// output.
	MaxPrevOutIndex uint32 = 0xffffffff

	// defaultTxInOutAlloc is the default size used for pre-allocating
	// the input and output slices of a transaction.
	defaultTxInOutAlloc = 15

	// minTxInPayload is the minimum possible serialized size of a
	// transaction input: 32 (prev hash) + 4 (prev index) + 1 (varint
	// for zero-length script) + 4 (sequence).
	minTxInPayload = 9 + chainhash.HashSize

	// minTxOutPayload is the minimum possible serialized size of a
	// transaction output: 8 (value) + 1 (varint for zero-length script).
	minTxOutPayload = 9

	// maxTxInPerMessage / maxTxOutPerMessage bound how many inputs or
	// outputs a serialized transaction may claim to have, derived from
	// the smallest possible encoding of each so an attacker cannot claim
	// more entries than could possibly fit in MaxMessagePayload.
	maxTxInPerMessage  = (MaxMessagePayload / minTxInPayload) + 1
	maxTxOutPerMessage = (MaxMessagePayload / minTxOutPayload) + 1

	// minTxPayload is the minimum possible serialized size of a
	// transaction: 4 version + one varint each for the input and output
	// counts + 4 locktime.
	minTxPayload = 10
)

// OutPoint defines a bitcoin data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new bitcoin transaction outpoint point with the
// provided hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

// String returns the outpoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

// TxIn defines a bitcoin transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction input.
func (t *TxIn) SerializeSize() int {
	return 40 + VarIntSerializeSize(uint64(len(t.SignatureScript))) + len(t.SignatureScript)
}

// NewTxIn returns a new bitcoin transaction input with the provided
// previous outpoint and signature script, with a default sequence of
// MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Sequence:         MaxTxInSequenceNum,
	}
}

// TxOut defines a bitcoin transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction output.
func (t *TxOut) SerializeSize() int {
	return 8 + VarIntSerializeSize(uint64(len(t.PkScript))) + len(t.PkScript)
}

// NewTxOut returns a new bitcoin transaction output with the provided
// transaction value and public key script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{Value: value, PkScript: pkScript}
}

// MsgTx implements the Message interface and represents a bitcoin
// transaction message, used both as a standalone "tx" message and embedded
// within a block.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash generates the hash for the transaction, which double-SHA256's the
// entire encoded transaction including witness-irrelevant fields (this
// implementation does not model segregated witness).
func (msg *MsgTx) TxHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
	_ = msg.BtcEncode(buf, 0)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Copy creates a deep copy of the transaction so that field modifications
// do not affect the original.
func (msg *MsgTx) Copy() *MsgTx {
	newTx := MsgTx{
		Version:  msg.Version,
		TxIn:     make([]*TxIn, 0, len(msg.TxIn)),
		TxOut:    make([]*TxOut, 0, len(msg.TxOut)),
		LockTime: msg.LockTime,
	}

	for _, oldTxIn := range msg.TxIn {
		newScript := make([]byte, len(oldTxIn.SignatureScript))
		copy(newScript, oldTxIn.SignatureScript)
		newTx.TxIn = append(newTx.TxIn, &TxIn{
			PreviousOutPoint: OutPoint{
				Hash:  oldTxIn.PreviousOutPoint.Hash,
				Index: oldTxIn.PreviousOutPoint.Index,
			},
			SignatureScript: newScript,
			Sequence:        oldTxIn.Sequence,
		})
	}

	for _, oldTxOut := range msg.TxOut {
		newScript := make([]byte, len(oldTxOut.PkScript))
		copy(newScript, oldTxOut.PkScript)
		newTx.TxOut = append(newTx.TxOut, &TxOut{
			Value:    oldTxOut.Value,
			PkScript: newScript,
		})
	}

	return &newTx
}

// IsCoinBase determines whether the transaction is a coinbase transaction,
// identified by a single input referencing a zero hash and max index.
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == MaxPrevOutIndex && prevOut.Hash == chainhash.ZeroHash
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction.
func (msg *MsgTx) SerializeSize() int {
	n := 8 + VarIntSerializeSize(uint64(len(msg.TxIn))) + VarIntSerializeSize(uint64(len(msg.TxOut)))
	for _, txIn := range msg.TxIn {
		n += txIn.SerializeSize()
	}
	for _, txOut := range msg.TxOut {
		n += txOut.SerializeSize()
	}
	return n
}

// BtcDecode decodes r using the protocol encoding into the receiver.
func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	if err := ReadElement(r, &msg.Version); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxInPerMessage {
		str := fmt.Sprintf("too many transaction inputs to fit into max message size [count %d, max %d]", count, maxTxInPerMessage)
		return messageError("MsgTx.BtcDecode", str)
	}

	msg.TxIn = make([]*TxIn, 0, count)
	for i := uint64(0); i < count; i++ {
		ti := new(TxIn)
		if err := readTxIn(r, ti); err != nil {
			return err
		}
		msg.TxIn = append(msg.TxIn, ti)
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > maxTxOutPerMessage {
		str := fmt.Sprintf("too many transaction outputs to fit into max message size [count %d, max %d]", count, maxTxOutPerMessage)
		return messageError("MsgTx.BtcDecode", str)
	}

	msg.TxOut = make([]*TxOut, 0, count)
	for i := uint64(0); i < count; i++ {
		to := new(TxOut)
		if err := readTxOut(r, to); err != nil {
			return err
		}
		msg.TxOut = append(msg.TxOut, to)
	}

	return ReadElement(r, &msg.LockTime)
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteElement(w, msg.Version); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}

	return WriteElement(w, msg.LockTime)
}

// Command returns the protocol command string for the message.
func (msg *MsgTx) Command() string {
	return CmdTx
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgTx) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgTx returns a new bitcoin transaction message with the given
// version, preallocated for a typical number of inputs and outputs.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, defaultTxInOutAlloc),
		TxOut:   make([]*TxOut, 0, defaultTxInOutAlloc),
	}
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	return readElements(r, &op.Hash, &op.Index)
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	return writeElements(w, &op.Hash, op.Index)
}

func readTxIn(r io.Reader, ti *TxIn) error {
	if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
		return err
	}

	script, err := ReadVarBytes(r, MaxMessagePayload, "transaction input signature script")
	if err != nil {
		return err
	}
	ti.SignatureScript = script

	return ReadElement(r, &ti.Sequence)
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
		return err
	}

	if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}

	return WriteElement(w, ti.Sequence)
}

func readTxOut(r io.Reader, to *TxOut) error {
	if err := ReadElement(r, &to.Value); err != nil {
		return err
	}

	script, err := ReadVarBytes(r, MaxMessagePayload, "transaction output public key script")
	if err != nil {
		return err
	}
	to.PkScript = script
	return nil
}

func writeTxOut(w io.Writer, to *TxOut) error {
	if err := WriteElement(w, to.Value); err != nil {
		return err
	}
	return WriteVarBytes(w, to.PkScript)
}
