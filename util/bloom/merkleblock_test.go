// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"testing"

	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

func coinbaseTx() *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  []byte{0x01, 0x02},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(5000000000, []byte{0x51}))
	return tx
}

func testBlock(matchedPkScript []byte) *blockutil.Block {
	msgBlock := wire.NewMsgBlock(&wire.BlockHeader{Version: 1})
	msgBlock.AddTransaction(coinbaseTx())
	msgBlock.AddTransaction(sampleTxWithOutput(matchedPkScript))
	msgBlock.AddTransaction(sampleTxWithOutput([]byte{0x6a, 0x00})) // unrelated OP_RETURN
	return blockutil.NewBlock(msgBlock)
}

func TestNewMerkleBlockMatchesExpectedTransaction(t *testing.T) {
	var pkHash [20]byte
	pkHash[0] = 0x42

	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add(pkHash[:])

	block := testBlock(p2pkhScript(pkHash))
	msg, matched := NewMerkleBlock(block, f)

	if len(matched) != 1 || matched[0] != 1 {
		t.Fatalf("expected only transaction index 1 to match, got %v", matched)
	}
	if msg.Transactions != 3 {
		t.Fatalf("Transactions should record the block's total tx count: got %d want 3", msg.Transactions)
	}
	if len(msg.Flags) == 0 {
		t.Fatalf("Flags should not be empty for a 3-leaf tree")
	}
	if len(msg.Hashes) == 0 {
		t.Fatalf("a partial merkle tree for a matched leaf should retain at least one hash")
	}
}

func TestNewMerkleBlockNoMatches(t *testing.T) {
	f := NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	f.Add([]byte("unrelated"))

	block := testBlock(p2pkhScript([20]byte{0xEE}))
	msg, matched := NewMerkleBlock(block, f)

	if len(matched) != 0 {
		t.Fatalf("expected no matches, got %v", matched)
	}
	if msg.Transactions != 3 {
		t.Fatalf("Transactions should still record the block's total tx count: got %d want 3", msg.Transactions)
	}
}

func TestCalcTreeHeight(t *testing.T) {
	cases := []struct {
		numTx  uint32
		height uint32
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
	}
	for _, c := range cases {
		if got := calcTreeHeight(c.numTx); got != c.height {
			t.Errorf("calcTreeHeight(%d) = %d, want %d", c.numTx, got, c.height)
		}
	}
}
