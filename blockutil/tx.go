// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockutil implements the block and transaction model of spec.md
// §4.2: hashing/identity, Merkle tree construction, structural validation,
// and the legacy signature hash algorithm, wrapping the wire-level
// wire.MsgBlock/wire.MsgTx types with the semantics consensus code needs.
package blockutil

import (
	"bytes"
	"errors"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// MaxSatoshi is the maximum number of satoshis that will ever exist,
// 21,000,000 BTC * 10^8 (spec.md §4.2: value sums within [0, 21M·10^8]).
const MaxSatoshi = 21000000 * 100000000

// Structural verification failures returned by Tx.Verify / Block.Verify.
// BlockChain.Add surfaces any of them as a VerificationError with code
// ErrStructural.
var (
	ErrNoTxInputs       = errors.New("transaction has no inputs")
	ErrNoTxOutputs      = errors.New("transaction has no outputs")
	ErrDuplicateTxInput = errors.New("transaction spends the same input twice")
	ErrBadTxOutValue    = errors.New("transaction output value out of range")
	ErrBadTotalTxOut    = errors.New("total transaction output value exceeds max satoshis")
	ErrBadPoW           = errors.New("block header hash does not satisfy target difficulty")
	ErrBadMerkleRoot    = errors.New("block transactions do not hash to the declared merkle root")
	ErrDuplicateTx      = errors.New("block contains a duplicate transaction hash")
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrFirstTxNotCoinbase = errors.New("block's first transaction is not a coinbase")
	ErrMultipleCoinbases  = errors.New("block contains more than one coinbase transaction")
	ErrBadCoinbaseScriptLen = errors.New("coinbase signature script is out of bounds")
)

// MaxCoinbaseScriptLen is the maximum length, in bytes, allowed for a
// coinbase transaction's signature script (spec.md §4.4.1: scriptSig <= 100
// bytes).
const MaxCoinbaseScriptLen = 100

// Tx wraps a wire.MsgTx, caching its hash.
type Tx struct {
	msgTx *wire.MsgTx
	hash  *chainhash.Hash
}

// NewTx returns a new Tx instance wrapping msgTx.
func NewTx(msgTx *wire.MsgTx) *Tx {
	return &Tx{msgTx: msgTx}
}

// MsgTx returns the underlying wire.MsgTx.
func (t *Tx) MsgTx() *wire.MsgTx {
	return t.msgTx
}

// Hash returns the transaction's double-SHA256 identity hash, computed
// once and cached.
func (t *Tx) Hash() *chainhash.Hash {
	if t.hash != nil {
		return t.hash
	}
	h := t.msgTx.TxHash()
	t.hash = &h
	return t.hash
}

// IsCoinBase reports whether the transaction is a coinbase transaction.
func (t *Tx) IsCoinBase() bool {
	return t.msgTx.IsCoinBase()
}

// Verify performs the structural checks of spec.md §4.2 Block.verify step
// (d): non-empty I/O, no duplicate inputs, value sums within range. Script
// parseability is the script oracle's concern (spec.md §1) and is not
// checked here.
func (t *Tx) Verify() error {
	msgTx := t.msgTx

	if len(msgTx.TxIn) == 0 {
		return ErrNoTxInputs
	}
	if len(msgTx.TxOut) == 0 {
		return ErrNoTxOutputs
	}

	if !t.IsCoinBase() {
		seen := make(map[wire.OutPoint]struct{}, len(msgTx.TxIn))
		for _, txIn := range msgTx.TxIn {
			if _, ok := seen[txIn.PreviousOutPoint]; ok {
				return ErrDuplicateTxInput
			}
			seen[txIn.PreviousOutPoint] = struct{}{}
		}
	} else if len(msgTx.TxIn[0].SignatureScript) > MaxCoinbaseScriptLen {
		return ErrBadCoinbaseScriptLen
	}

	var total int64
	for _, txOut := range msgTx.TxOut {
		if txOut.Value < 0 || txOut.Value > MaxSatoshi {
			return ErrBadTxOutValue
		}
		total += txOut.Value
		if total < 0 || total > MaxSatoshi {
			return ErrBadTotalTxOut
		}
	}

	return nil
}

// Sighash types, mirroring the classic Bitcoin signature hash flags.
const (
	SigHashAll          uint32 = 0x1
	SigHashNone         uint32 = 0x2
	SigHashSingle       uint32 = 0x3
	SigHashAnyOneCanPay uint32 = 0x80

	sigHashMask = 0x1f
)

// HashForSignature implements Transaction.hashForSignature from spec.md
// §4.2: clone the transaction, blank every input's scriptSig except the
// one being signed (which receives subscript with OP_CODESEPARATOR bytes
// removed), zero counterpart fields per the sigHashType, append the
// sigHashType as a little-endian u32, and double-SHA256 the result.
func HashForSignature(tx *wire.MsgTx, inputIndex int, subscript []byte, hashType uint32) (chainhash.Hash, error) {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return chainhash.Hash{}, errors.New("blockutil: input index out of range for HashForSignature")
	}

	subscript = removeOpcodeSeparators(subscript)

	txCopy := tx.Copy()

	for i := range txCopy.TxIn {
		if i == inputIndex {
			txCopy.TxIn[i].SignatureScript = subscript
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
	}

	switch hashType & sigHashMask {
	case SigHashNone:
		txCopy.TxOut = txCopy.TxOut[:0]
		for i := range txCopy.TxIn {
			if i != inputIndex {
				txCopy.TxIn[i].Sequence = 0
			}
		}

	case SigHashSingle:
		if inputIndex >= len(txCopy.TxOut) {
			return chainhash.Hash{}, errors.New("blockutil: SIGHASH_SINGLE input index without a matching output")
		}
		txCopy.TxOut = txCopy.TxOut[:inputIndex+1]
		for i := 0; i < inputIndex; i++ {
			txCopy.TxOut[i].Value = -1
			txCopy.TxOut[i].PkScript = nil
		}
		for i := range txCopy.TxIn {
			if i != inputIndex {
				txCopy.TxIn[i].Sequence = 0
			}
		}

	default:
		// SIGHASH_ALL: leave outputs untouched.
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		txCopy.TxIn = []*wire.TxIn{txCopy.TxIn[inputIndex]}
	}

	var buf bytes.Buffer
	if err := txCopy.BtcEncode(&buf, 0); err != nil {
		return chainhash.Hash{}, err
	}

	var hashTypeBytes [4]byte
	littleEndianPutUint32(hashTypeBytes[:], hashType)
	buf.Write(hashTypeBytes[:])

	return chainhash.DoubleHashH(buf.Bytes()), nil
}

func littleEndianPutUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// removeOpcodeSeparators strips OP_CODESEPARATOR (0xab) bytes from script,
// the step spec.md §4.2 requires when preparing the signing input's
// subscript. This is a structural byte filter, not a script interpreter:
// full script parsing (to skip over OP_CODESEPARATOR bytes appearing
// inside push-data, rather than as opcodes) is the script oracle's
// responsibility.
func removeOpcodeSeparators(script []byte) []byte {
	const opCodeSeparator = 0xab

	out := make([]byte, 0, len(script))
	for _, b := range script {
		if b == opCodeSeparator {
			continue
		}
		out = append(out, b)
	}
	return out
}
