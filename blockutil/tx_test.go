// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockutil

import (
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

func sampleTx() *wire.MsgTx {
	var prevHash chainhash.Hash
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&prevHash, 0),
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(5000000000, []byte{0x51}))
	return tx
}

func TestNewTxRoundTrip(t *testing.T) {
	msgTx := sampleTx()
	tx := NewTx(msgTx)

	if got := tx.MsgTx(); !reflect.DeepEqual(got, msgTx) {
		t.Fatalf("MsgTx: mismatched tx - got %s want %s", spew.Sdump(got), spew.Sdump(msgTx))
	}

	h1 := tx.Hash()
	h2 := tx.Hash()
	if h1 != h2 {
		t.Fatalf("Hash should be cached and stable across calls: got %s then %s", h1, h2)
	}
	if *h1 != msgTx.TxHash() {
		t.Fatalf("Hash mismatch - got %s want %s", h1, msgTx.TxHash())
	}
}

func TestTxVerifyNoInputs(t *testing.T) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxOut(wire.NewTxOut(1, []byte{0x51}))
	if err := NewTx(msgTx).Verify(); err != ErrNoTxInputs {
		t.Fatalf("Verify: got %v, want %v", err, ErrNoTxInputs)
	}
}

func TestTxVerifyNoOutputs(t *testing.T) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(&wire.TxIn{SignatureScript: []byte{0x51}, Sequence: wire.MaxTxInSequenceNum})
	if err := NewTx(msgTx).Verify(); err != ErrNoTxOutputs {
		t.Fatalf("Verify: got %v, want %v", err, ErrNoTxOutputs)
	}
}

func TestTxVerifyDuplicateInput(t *testing.T) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	outpoint := wire.OutPoint{Index: 1}
	msgTx.AddTxIn(&wire.TxIn{PreviousOutPoint: outpoint, Sequence: wire.MaxTxInSequenceNum})
	msgTx.AddTxIn(&wire.TxIn{PreviousOutPoint: outpoint, Sequence: wire.MaxTxInSequenceNum})
	msgTx.AddTxOut(wire.NewTxOut(1, []byte{0x51}))

	if err := NewTx(msgTx).Verify(); err != ErrDuplicateTxInput {
		t.Fatalf("Verify: got %v, want %v", err, ErrDuplicateTxInput)
	}
}

func TestTxVerifyBadOutputValue(t *testing.T) {
	msgTx := sampleTx()
	msgTx.TxOut[0].Value = -1
	if err := NewTx(msgTx).Verify(); err != ErrBadTxOutValue {
		t.Fatalf("Verify: got %v, want %v", err, ErrBadTxOutValue)
	}

	msgTx = sampleTx()
	msgTx.TxOut[0].Value = MaxSatoshi + 1
	if err := NewTx(msgTx).Verify(); err != ErrBadTxOutValue {
		t.Fatalf("Verify: got %v, want %v", err, ErrBadTxOutValue)
	}
}

func TestHashForSignatureSigHashAll(t *testing.T) {
	msgTx := sampleTx()
	subscript := []byte{0x51}

	h1, err := HashForSignature(msgTx, 0, subscript, SigHashAll)
	if err != nil {
		t.Fatalf("HashForSignature: unexpected error: %v", err)
	}
	h2, err := HashForSignature(msgTx, 0, subscript, SigHashAll)
	if err != nil {
		t.Fatalf("HashForSignature: unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("HashForSignature should be deterministic: got %s then %s", h1, h2)
	}

	if !reflect.DeepEqual(msgTx, sampleTx()) {
		t.Fatalf("HashForSignature must not mutate its input tx - got %s", spew.Sdump(msgTx))
	}
}

func TestHashForSignatureInputIndexOutOfRange(t *testing.T) {
	msgTx := sampleTx()
	if _, err := HashForSignature(msgTx, 5, nil, SigHashAll); err == nil {
		t.Fatal("HashForSignature: expected error for out-of-range input index")
	}
}

func TestHashForSignatureSigHashSingleWithoutMatchingOutput(t *testing.T) {
	msgTx := sampleTx()
	msgTx.AddTxIn(&wire.TxIn{Sequence: wire.MaxTxInSequenceNum})
	if _, err := HashForSignature(msgTx, 1, nil, SigHashSingle); err == nil {
		t.Fatal("HashForSignature: expected error for SIGHASH_SINGLE without a matching output")
	}
}

func TestRemoveOpcodeSeparators(t *testing.T) {
	script := []byte{0x51, 0xab, 0x52, 0xab, 0xab, 0x53}
	got := removeOpcodeSeparators(script)
	want := []byte{0x51, 0x52, 0x53}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("removeOpcodeSeparators: got %x want %x", got, want)
	}
}
