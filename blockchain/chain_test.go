package blockchain

import (
	"testing"
	"time"

	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/database/memdb"
	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/store"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// testParams returns a private copy of RegressionNetParams (same genesis
// block) so a test never mutates the package-level regtest params, which
// are already registered (Register is once-per-magic).
func testParams() *params.Params {
	p := params.RegressionNetParams
	return &p
}

func newTestChain(t *testing.T) (*BlockChain, *params.Params) {
	t.Helper()
	p := testParams()
	db := memdb.New()
	st := store.New(db)
	bc, err := New(p, st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return bc, p
}

func coinbaseTx(height uint32, extraNonce byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	outpoint := wire.NewOutPoint(&chainhash.ZeroHash, 0xffffffff)
	tx.AddTxIn(wire.NewTxIn(outpoint, []byte{extraNonce}))
	tx.AddTxOut(wire.NewTxOut(50*100000000, []byte{0x51}))
	return tx
}

func mineBlock(t *testing.T, p *params.Params, prev *wire.BlockHeader, prevHash chainhash.Hash, height uint32, ts time.Time, extraNonce byte) *blockutil.Block {
	t.Helper()
	coinbase := coinbaseTx(height, extraNonce)
	msgBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prevHash,
			Timestamp: ts,
			Bits:      p.PowLimitBits,
			Nonce:     0,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block := blockutil.NewBlock(msgBlock)
	root := block.MerkleRoot()
	msgBlock.Header.MerkleRoot = *root
	// Recompute with the real block to pick up the now-set MerkleRoot, then
	// search nonces until the header hash satisfies the target.
	for {
		block = blockutil.NewBlock(msgBlock)
		if err := block.Verify(); err != blockutil.ErrBadPoW {
			return block
		}
		msgBlock.Header.Nonce++
	}
}

func TestNewSeedsGenesis(t *testing.T) {
	bc, p := newTestChain(t)
	head, err := bc.store.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: %v", err)
	}
	if head.Height != 0 {
		t.Fatalf("genesis height = %d, want 0", head.Height)
	}
	if head.Hash() != *p.GenesisHash {
		t.Fatalf("genesis hash mismatch: got %s want %s", head.Hash(), p.GenesisHash)
	}
}

func TestAddConnectsNextBlock(t *testing.T) {
	bc, p := newTestChain(t)
	genesis, _ := bc.store.GetChainHead()

	var connectedHeads []uint32
	bc.AddBlockConnectedListener(func(block *blockutil.Block, head *store.StoredBlock) {
		connectedHeads = append(connectedHeads, head.Height)
	})

	block := mineBlock(t, p, &genesis.Header, genesis.Hash(), 1, time.Now(), 0)
	connected, err := bc.Add(block)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !connected {
		t.Fatalf("expected block to connect")
	}

	head, err := bc.store.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: %v", err)
	}
	if head.Height != 1 {
		t.Fatalf("head height = %d, want 1", head.Height)
	}
	if len(connectedHeads) != 1 || connectedHeads[0] != 1 {
		t.Fatalf("unexpected connected listener calls: %v", connectedHeads)
	}
}

func TestAddOrphanIsBufferedThenConnected(t *testing.T) {
	bc, p := newTestChain(t)
	genesis, _ := bc.store.GetChainHead()

	block1 := mineBlock(t, p, &genesis.Header, genesis.Hash(), 1, time.Now(), 0)
	block2 := mineBlock(t, p, &block1.MsgBlock().Header, *block1.Hash(), 2, time.Now().Add(time.Minute), 0)

	connected, err := bc.Add(block2)
	if err != nil {
		t.Fatalf("Add(orphan): %v", err)
	}
	if connected {
		t.Fatalf("orphan should not connect")
	}

	connected, err = bc.Add(block1)
	if err != nil {
		t.Fatalf("Add(parent): %v", err)
	}
	if !connected {
		t.Fatalf("parent should connect")
	}

	head, err := bc.store.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: %v", err)
	}
	if head.Height != 2 {
		t.Fatalf("head height = %d, want 2 (orphan should have been reprocessed)", head.Height)
	}
}

func TestAddRejectsDuplicateBlock(t *testing.T) {
	bc, p := newTestChain(t)
	genesis, _ := bc.store.GetChainHead()
	block := mineBlock(t, p, &genesis.Header, genesis.Hash(), 1, time.Now(), 0)

	if _, err := bc.Add(block); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := bc.Add(block); err == nil {
		t.Fatalf("expected duplicate block to be rejected")
	}
}

func TestReorganizeSwitchesToHeavierBranch(t *testing.T) {
	bc, p := newTestChain(t)
	genesis, _ := bc.store.GetChainHead()

	var reorgs int
	bc.AddReorganizeListener(func(oldHead, newHead *store.StoredBlock) {
		reorgs++
	})

	branchA1 := mineBlock(t, p, &genesis.Header, genesis.Hash(), 1, time.Now(), 0xa1)
	if connected, err := bc.Add(branchA1); err != nil || !connected {
		t.Fatalf("Add(branchA1): connected=%v err=%v", connected, err)
	}

	branchB1 := mineBlock(t, p, &genesis.Header, genesis.Hash(), 1, time.Now(), 0xb1)
	if connected, err := bc.Add(branchB1); err != nil {
		t.Fatalf("Add(branchB1): %v", err)
	} else if connected {
		t.Fatalf("branchB1 should be stored as a losing side branch")
	}

	branchB2 := mineBlock(t, p, &branchB1.MsgBlock().Header, *branchB1.Hash(), 2, time.Now().Add(time.Minute), 0xb2)
	connected, err := bc.Add(branchB2)
	if err != nil {
		t.Fatalf("Add(branchB2): %v", err)
	}
	if !connected {
		t.Fatalf("branchB2 should trigger a reorganize and connect")
	}
	if reorgs != 1 {
		t.Fatalf("reorganize listener fired %d times, want 1", reorgs)
	}

	head, err := bc.store.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: %v", err)
	}
	if head.Height != 2 || head.Hash() != *branchB2.Hash() {
		t.Fatalf("chain head = %s at height %d, want branchB2", head.Hash(), head.Height)
	}

	// branchA1's coinbase must have been undone, branchB1/B2's applied.
	aCoinbase := branchA1.MsgBlock().Transactions[0].TxHash()
	if _, err := bc.store.GetTransactionOutput(&aCoinbase, 0); err != store.ErrNotFound {
		t.Fatalf("branchA1 coinbase output should have been removed from the UTXO set, got err=%v", err)
	}
	bCoinbase := branchB1.MsgBlock().Transactions[0].TxHash()
	if _, err := bc.store.GetTransactionOutput(&bCoinbase, 0); err != nil {
		t.Fatalf("branchB1 coinbase output should be in the UTXO set: %v", err)
	}
}

func TestAddRejectsBadTimestamp(t *testing.T) {
	bc, p := newTestChain(t)
	genesis, _ := bc.store.GetChainHead()

	block := mineBlock(t, p, &genesis.Header, genesis.Hash(), 1, genesis.Header.Timestamp.Add(-time.Hour), 0)
	if _, err := bc.Add(block); err == nil {
		t.Fatalf("expected a block timestamped before its parent to be rejected")
	}
}
