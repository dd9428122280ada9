// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"testing"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

func TestFilterMatchesAddedData(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	data := []byte("some data")

	if f.Matches(data) {
		t.Fatalf("filter should not match data before it is added")
	}
	f.Add(data)
	if !f.Matches(data) {
		t.Fatalf("filter should match data once it is added")
	}
	if f.Matches([]byte("other data")) {
		t.Fatalf("filter should not match unrelated data")
	}
}

func TestFilterMatchesOutPoint(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	hash := chainhash.DoubleHashH([]byte("tx0"))
	f.Add(outPointBytes(&hash, 3))

	if !f.MatchesOutPoint(&hash, 3) {
		t.Fatalf("filter should match the outpoint it was loaded with")
	}
	if f.MatchesOutPoint(&hash, 4) {
		t.Fatalf("filter should not match a different output index of the same tx")
	}
}

func TestFilterClearAndReload(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	data := []byte("some data")
	f.Add(data)
	if !f.Matches(data) {
		t.Fatalf("setup: filter should match data once added")
	}

	f.Clear()
	if f.Matches(data) {
		t.Fatalf("filterclear should make the filter match nothing")
	}

	if err := f.Reload([]byte{0xff, 0xff}, 3, 0); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if f.HashFuncs() != 3 {
		t.Fatalf("Reload should update HashFuncs: got %d want 3", f.HashFuncs())
	}
}

// p2pkhScript builds a standard pay-to-pubkey-hash scriptPubKey around
// hash, mirroring what txscript.classifyPkScript recognizes.
func p2pkhScript(hash [20]byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, hash[:]...)
	script = append(script, 0x88, 0xac)
	return script
}

func sampleTxWithOutput(pkScript []byte) *wire.MsgTx {
	var prevHash chainhash.Hash
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&prevHash, 0),
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(1000, pkScript))
	return tx
}

func TestMatchTxAndUpdateMatchesOutputScript(t *testing.T) {
	var pkHash [20]byte
	pkHash[0] = 0xAB

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add(pkHash[:])

	tx := sampleTxWithOutput(p2pkhScript(pkHash))
	if !f.MatchTxAndUpdate(tx) {
		t.Fatalf("filter loaded with the output's pubkey hash should match the tx")
	}

	txHash := tx.TxHash()
	if !f.MatchesOutPoint(&txHash, 0) {
		t.Fatalf("BloomUpdateAll should fold the matched output back into the filter")
	}
}

func TestMatchTxAndUpdateP2PubkeyOnlyIgnoresOtherScripts(t *testing.T) {
	var pkHash [20]byte
	pkHash[0] = 0xCD

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateP2PubkeyOnly)
	f.Add(pkHash[:])

	nonStandard := append([]byte{0x6a, 0x14}, pkHash[:]...) // OP_RETURN <data>
	tx := sampleTxWithOutput(nonStandard)
	if !f.MatchTxAndUpdate(tx) {
		t.Fatalf("filter should still match the pushed data itself")
	}

	txHash := tx.TxHash()
	if f.MatchesOutPoint(&txHash, 0) {
		t.Fatalf("BloomUpdateP2PubkeyOnly should not fold back a non-p2pkh/p2pk match")
	}
}

func TestMatchTxAndUpdateNoMatch(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add([]byte("unrelated"))

	tx := sampleTxWithOutput(p2pkhScript([20]byte{}))
	if f.MatchTxAndUpdate(tx) {
		t.Fatalf("filter with no relevant entries should not match the tx")
	}
}
