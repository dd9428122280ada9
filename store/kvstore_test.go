package store_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcfullnode/node/database/memdb"
	"github.com/btcfullnode/node/store"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

func makeTestBlock(height uint32, prev chainhash.Hash, nonce uint32) *store.StoredBlock {
	header := wire.BlockHeader{
		Version:    1,
		PrevBlock:  prev,
		MerkleRoot: chainhash.Hash{byte(height)},
		Timestamp:  time.Unix(1231006505+int64(height), 0),
		Bits:       0x1d00ffff,
		Nonce:      nonce,
	}
	return &store.StoredBlock{
		Header:    header,
		ChainWork: big.NewInt(int64(height) + 1),
		Height:    height,
	}
}

func TestPutGetBlock(t *testing.T) {
	s := store.New(memdb.New())

	block := makeTestBlock(1, chainhash.ZeroHash, 42)
	hash := block.Hash()

	if err := s.Put(block, nil); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}

	got, err := s.Get(&hash)
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if got.Height != block.Height {
		t.Fatalf("Get: got height %d, want %d", got.Height, block.Height)
	}
	if got.ChainWork.Cmp(block.ChainWork) != 0 {
		t.Fatalf("Get: got chain work %v, want %v", got.ChainWork, block.ChainWork)
	}
	if got.Header.BlockHash() != hash {
		t.Fatalf("Get: round-tripped header hash mismatch")
	}
}

func TestGetMissingBlock(t *testing.T) {
	s := store.New(memdb.New())

	if _, err := s.Get(&chainhash.ZeroHash); err != store.ErrNotFound {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
}

func TestChainHeadRoundTrip(t *testing.T) {
	s := store.New(memdb.New())

	if _, err := s.GetChainHead(); err != store.ErrNotFound {
		t.Fatalf("GetChainHead: expected ErrNotFound before any head is set, got %v", err)
	}

	block := makeTestBlock(5, chainhash.ZeroHash, 7)
	if err := s.Put(block, nil); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}
	if err := s.SetChainHead(block); err != nil {
		t.Fatalf("SetChainHead: unexpected error: %v", err)
	}

	got, err := s.GetChainHead()
	if err != nil {
		t.Fatalf("GetChainHead: unexpected error: %v", err)
	}
	if got.Height != block.Height {
		t.Fatalf("GetChainHead: got height %d, want %d", got.Height, block.Height)
	}
}

func TestUTXOLifecycle(t *testing.T) {
	s := store.New(memdb.New())

	txOut := &store.StoredTxOut{
		Hash:       chainhash.Hash{1, 2, 3},
		Index:      0,
		Value:      5000000000,
		PkScript:   []byte{0x76, 0xa9},
		Height:     1,
		IsCoinbase: true,
	}

	if err := s.AddUnspentTransactionOutput(txOut); err != nil {
		t.Fatalf("AddUnspentTransactionOutput: unexpected error: %v", err)
	}

	got, err := s.GetTransactionOutput(&txOut.Hash, txOut.Index)
	if err != nil {
		t.Fatalf("GetTransactionOutput: unexpected error: %v", err)
	}
	if got.Value != txOut.Value || !got.IsCoinbase {
		t.Fatalf("GetTransactionOutput: got %+v, want %+v", got, txOut)
	}

	if err := s.RemoveUnspentTransactionOutput(&txOut.Hash, txOut.Index); err != nil {
		t.Fatalf("RemoveUnspentTransactionOutput: unexpected error: %v", err)
	}
	if _, err := s.GetTransactionOutput(&txOut.Hash, txOut.Index); err != store.ErrNotFound {
		t.Fatalf("GetTransactionOutput: expected ErrNotFound after removal, got %v", err)
	}
}

func TestUndoableBlockFullTransactions(t *testing.T) {
	s := store.New(memdb.New())

	block := makeTestBlock(2, chainhash.ZeroHash, 1)
	hash := block.Hash()

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(2500000000, []byte{0x51}))

	undoable := &store.StoredUndoableBlock{Transactions: []*wire.MsgTx{tx}}
	if err := s.Put(block, undoable); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}

	got, err := s.GetUndo(&hash)
	if err != nil {
		t.Fatalf("GetUndo: unexpected error: %v", err)
	}
	if got.IsFinalized() {
		t.Fatalf("GetUndo: expected non-finalized undo block")
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("GetUndo: got %d transactions, want 1", len(got.Transactions))
	}
	if got.Transactions[0].TxOut[0].Value != tx.TxOut[0].Value {
		t.Fatalf("GetUndo: transaction round-trip mismatch")
	}
}

func TestFinalize(t *testing.T) {
	s := store.New(memdb.New())

	block := makeTestBlock(3, chainhash.ZeroHash, 1)
	hash := block.Hash()

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(100, []byte{0x51}))
	if err := s.Put(block, &store.StoredUndoableBlock{Transactions: []*wire.MsgTx{tx}}); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}

	changes := &store.TransactionOutputChanges{
		Created: []*store.StoredTxOut{{Hash: hash, Index: 0, Value: 100, PkScript: []byte{0x51}, Height: 3}},
	}
	if err := s.Finalize(&hash, changes); err != nil {
		t.Fatalf("Finalize: unexpected error: %v", err)
	}

	got, err := s.GetUndo(&hash)
	if err != nil {
		t.Fatalf("GetUndo: unexpected error: %v", err)
	}
	if !got.IsFinalized() {
		t.Fatalf("GetUndo: expected finalized undo block after Finalize")
	}
	if len(got.TxOutChanges.Created) != 1 || got.TxOutChanges.Created[0].Value != 100 {
		t.Fatalf("GetUndo: TxOutChanges round-trip mismatch: %+v", got.TxOutChanges)
	}
}

func TestBatchWriteCommit(t *testing.T) {
	s := store.New(memdb.New())

	block := makeTestBlock(9, chainhash.ZeroHash, 1)

	batchStore, err := s.BeginDatabaseBatchWrite()
	if err != nil {
		t.Fatalf("BeginDatabaseBatchWrite: unexpected error: %v", err)
	}
	if err := batchStore.Put(block, nil); err != nil {
		t.Fatalf("batch Put: unexpected error: %v", err)
	}

	hash := block.Hash()
	if _, err := s.Get(&hash); err != store.ErrNotFound {
		t.Fatalf("Get: expected uncommitted batch write to be invisible, got %v", err)
	}

	if err := batchStore.CommitDatabaseBatchWrite(); err != nil {
		t.Fatalf("CommitDatabaseBatchWrite: unexpected error: %v", err)
	}

	if _, err := s.Get(&hash); err != nil {
		t.Fatalf("Get: expected committed batch write to be visible, got %v", err)
	}
}

func TestBatchWriteAbort(t *testing.T) {
	s := store.New(memdb.New())

	block := makeTestBlock(10, chainhash.ZeroHash, 1)

	batchStore, err := s.BeginDatabaseBatchWrite()
	if err != nil {
		t.Fatalf("BeginDatabaseBatchWrite: unexpected error: %v", err)
	}
	if err := batchStore.Put(block, nil); err != nil {
		t.Fatalf("batch Put: unexpected error: %v", err)
	}
	batchStore.AbortDatabaseBatchWrite()

	hash := block.Hash()
	if _, err := s.Get(&hash); err != store.ErrNotFound {
		t.Fatalf("Get: expected aborted batch write to stay invisible, got %v", err)
	}
}
