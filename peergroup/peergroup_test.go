// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup

import (
	"testing"
	"time"

	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/peer"
	"github.com/btcfullnode/node/util/bloom"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

func TestCandidateBackoff(t *testing.T) {
	c := &candidate{}
	if d := c.backoff(); d != 0 {
		t.Fatalf("backoff with no failures: got %s want 0", d)
	}

	c.failures = 1
	if d := c.backoff(); d != minBackoff {
		t.Fatalf("backoff after 1 failure: got %s want %s", d, minBackoff)
	}

	c.failures = 20
	if d := c.backoff(); d != maxBackoff {
		t.Fatalf("backoff should saturate at maxBackoff: got %s want %s", d, maxBackoff)
	}
}

func TestCandidateEligible(t *testing.T) {
	now := time.Now()

	c := &candidate{}
	if !c.eligible(now) {
		t.Fatal("a candidate with no attempt history should be immediately eligible")
	}

	c.lastAttempt = now
	c.failures = 1
	if c.eligible(now) {
		t.Fatal("a candidate still inside its backoff window should not be eligible")
	}
	if !c.eligible(now.Add(minBackoff + time.Second)) {
		t.Fatal("a candidate past its backoff window should be eligible")
	}
}

func newTestPeerGroup(t *testing.T) *PeerGroup {
	t.Helper()
	pg, err := New(&Config{NetParams: &params.RegressionNetParams})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	return pg
}

func TestAddAddressDedups(t *testing.T) {
	pg := newTestPeerGroup(t)

	pg.AddAddress("127.0.0.1:18444")
	pg.AddAddress("127.0.0.1:18444")

	pg.mu.Lock()
	n := len(pg.candidates)
	pg.mu.Unlock()

	if n != 1 {
		t.Fatalf("AddAddress: got %d candidates, want 1 after adding the same address twice", n)
	}
}

func TestSelectCandidatePrefersUnseen(t *testing.T) {
	pg := newTestPeerGroup(t)

	pg.AddAddress("127.0.0.1:10001")
	pg.AddAddress("127.0.0.1:10002")

	pg.mu.Lock()
	pg.candidates["127.0.0.1:10001"].lastAttempt = time.Now()
	pg.candidates["127.0.0.1:10001"].failures = 1
	pg.mu.Unlock()

	c := pg.selectCandidate()
	if c == nil {
		t.Fatal("selectCandidate: expected the unseen candidate to be returned")
	}
	if c.addr != "127.0.0.1:10002" {
		t.Fatalf("selectCandidate: got %s, want the never-attempted candidate 127.0.0.1:10002", c.addr)
	}
}

func TestSelectCandidateSkipsIneligibleAndConnected(t *testing.T) {
	pg := newTestPeerGroup(t)

	pg.AddAddress("127.0.0.1:10001")
	pg.mu.Lock()
	pg.candidates["127.0.0.1:10001"].lastAttempt = time.Now()
	pg.candidates["127.0.0.1:10001"].failures = 1
	pg.mu.Unlock()

	if c := pg.selectCandidate(); c != nil {
		t.Fatalf("selectCandidate: got %s, want nil while still inside backoff", c.addr)
	}

	pg.AddAddress("127.0.0.1:10002")
	pg.mu.Lock()
	pg.peers["127.0.0.1:10002"] = nil
	pg.mu.Unlock()

	if c := pg.selectCandidate(); c != nil {
		t.Fatalf("selectCandidate: got %s, want nil for an address already connected", c.addr)
	}
}

func TestSetMaxConnections(t *testing.T) {
	pg := newTestPeerGroup(t)

	if pg.maxConns() != 8 {
		t.Fatalf("default MaxConnections: got %d want 8", pg.maxConns())
	}

	pg.SetMaxConnections(3)
	if pg.maxConns() != 3 {
		t.Fatalf("SetMaxConnections: got %d want 3", pg.maxConns())
	}
}

func TestBroadcastTransactionNoPeers(t *testing.T) {
	pg := newTestPeerGroup(t)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(1, []byte{0x51}))

	err := pg.BroadcastTransaction(tx)
	if err == nil {
		t.Fatal("BroadcastTransaction: expected an error with no connected peers")
	}

	pg.broadcastMu.Lock()
	n := len(pg.broadcasts)
	pg.broadcastMu.Unlock()
	if n != 0 {
		t.Fatalf("BroadcastTransaction: leaked %d broadcast entries after returning", n)
	}
}

func TestConnectedPeerCountEmpty(t *testing.T) {
	pg := newTestPeerGroup(t)
	if n := pg.ConnectedPeerCount(); n != 0 {
		t.Fatalf("ConnectedPeerCount: got %d want 0 for a fresh PeerGroup", n)
	}
	if pg.DownloadPeer() != nil {
		t.Fatal("DownloadPeer: expected nil for a fresh PeerGroup")
	}
}

func TestNewRequiresNetParams(t *testing.T) {
	if _, err := New(&Config{}); err == nil {
		t.Fatal("New: expected an error when NetParams is nil")
	}
}

func newTestPeer(t *testing.T, cfg *peer.Config) *peer.Peer {
	t.Helper()
	if cfg == nil {
		cfg = &peer.Config{NetParams: &params.RegressionNetParams}
	}
	p, err := peer.NewOutboundPeer(cfg, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewOutboundPeer: unexpected error: %v", err)
	}
	return p
}

func TestFilterLoadAddAndClear(t *testing.T) {
	pg := newTestPeerGroup(t)
	p := newTestPeer(t, nil)

	filter := bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	loadMsg := wire.NewMsgFilterLoad(filter.Bytes(), filter.HashFuncs(), filter.Tweak(), wire.BloomUpdateAll)
	pg.onFilterLoad(p, loadMsg)

	if _, ok := pg.peerFilter(p); !ok {
		t.Fatal("onFilterLoad: expected a filter to be installed for the peer")
	}

	pg.onFilterAdd(p, &wire.MsgFilterAdd{Data: []byte("some data")})
	installed, ok := pg.peerFilter(p)
	if !ok {
		t.Fatal("onFilterAdd: filter unexpectedly removed")
	}
	if !installed.Matches([]byte("some data")) {
		t.Fatal("onFilterAdd: data should have been folded into the peer's filter")
	}

	pg.peerConfig().Listeners.OnFilterClear(p, &wire.MsgFilterClear{})
	if _, ok := pg.peerFilter(p); ok {
		t.Fatal("OnFilterClear: expected the peer's filter to be removed")
	}
}

func TestFilterAddWithoutLoadIsIgnored(t *testing.T) {
	pg := newTestPeerGroup(t)
	p := newTestPeer(t, nil)

	pg.onFilterAdd(p, &wire.MsgFilterAdd{Data: []byte("some data")})
	if _, ok := pg.peerFilter(p); ok {
		t.Fatal("filteradd with no prior filterload should not install a filter")
	}
}

func TestWantsTxHonorsPeerFilter(t *testing.T) {
	pg := newTestPeerGroup(t)
	unfiltered := newTestPeer(t, nil)
	filtered := newTestPeer(t, nil)

	var prevHash chainhash.Hash
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&prevHash, 0),
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	if !pg.wantsTx(unfiltered, tx) {
		t.Fatal("a peer with no loaded filter should want every transaction")
	}

	filter := bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	filter.Add([]byte("unrelated"))
	pg.filterMu.Lock()
	pg.filters[filtered] = filter
	pg.filterMu.Unlock()

	if pg.wantsTx(filtered, tx) {
		t.Fatal("a filtered peer whose filter doesn't match should not want the transaction")
	}
}

func TestOnInvRequestsMissingBlocksOnce(t *testing.T) {
	pg := newTestPeerGroup(t)
	p := newTestPeer(t, nil)

	hash := chainhash.DoubleHashH([]byte("block0"))
	inv := wire.NewMsgInv()
	_ = inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))

	pg.onInv(p, inv)

	pg.blockReqMu.Lock()
	reqs := pg.blockReqs[p]
	n := len(reqs)
	pg.blockReqMu.Unlock()
	if n != 1 {
		t.Fatalf("onInv: got %d tracked block requests, want 1", n)
	}

	// A repeated announcement of the same block shouldn't add a second
	// deadline while the first is still outstanding.
	pg.onInv(p, inv)
	pg.blockReqMu.Lock()
	n = len(pg.blockReqs[p])
	pg.blockReqMu.Unlock()
	if n != 1 {
		t.Fatalf("onInv: repeated inv tracked %d requests, want 1", n)
	}

	pg.fulfillBlockRequest(p, hash)
	pg.blockReqMu.Lock()
	n = len(pg.blockReqs[p])
	pg.blockReqMu.Unlock()
	if n != 0 {
		t.Fatalf("fulfillBlockRequest: got %d still pending, want 0", n)
	}
}

func TestOnInvIgnoresNonBlockInventory(t *testing.T) {
	pg := newTestPeerGroup(t)
	p := newTestPeer(t, nil)

	hash := chainhash.DoubleHashH([]byte("tx0"))
	inv := wire.NewMsgInv()
	_ = inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash))

	pg.onInv(p, inv)

	pg.blockReqMu.Lock()
	n := len(pg.blockReqs[p])
	pg.blockReqMu.Unlock()
	if n != 0 {
		t.Fatalf("onInv: tx inventory should not be tracked as a block request, got %d", n)
	}
}

func TestUnregisterPeerClearsFilterAndBlockRequests(t *testing.T) {
	pg := newTestPeerGroup(t)
	p := newTestPeer(t, nil)

	pg.filterMu.Lock()
	pg.filters[p] = bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	pg.filterMu.Unlock()

	hash := chainhash.DoubleHashH([]byte("block0"))
	inv := wire.NewMsgInv()
	_ = inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))
	pg.onInv(p, inv)

	pg.unregisterPeer(p)

	if _, ok := pg.peerFilter(p); ok {
		t.Fatal("unregisterPeer should remove the peer's bloom filter")
	}
	pg.blockReqMu.Lock()
	_, ok := pg.blockReqs[p]
	pg.blockReqMu.Unlock()
	if ok {
		t.Fatal("unregisterPeer should remove the peer's tracked block requests")
	}
}

func TestRequestBlocksNoopWithoutLocator(t *testing.T) {
	pg := newTestPeerGroup(t)
	p := newTestPeer(t, nil)

	// cfg.BlockLocator is nil by default; requestBlocks must not panic
	// and must not push a getblocks message.
	pg.requestBlocks(p)
}

func TestRelayBlockSkipsSourcePeerAndHandlesNoPeers(t *testing.T) {
	pg := newTestPeerGroup(t)

	msgBlock := wire.NewMsgBlock(&wire.BlockHeader{Version: 1})
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  []byte{0x01},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(wire.NewTxOut(5000000000, []byte{0x51}))
	msgBlock.AddTransaction(coinbase)

	// No connected peers: should return without blocking or panicking.
	pg.RelayBlock(msgBlock, nil)

	from := newTestPeer(t, nil)
	filtered := newTestPeer(t, nil)
	pg.mu.Lock()
	pg.peers[from.Addr()] = from
	pg.peers["127.0.0.1:1"] = filtered
	pg.mu.Unlock()

	filter := bloom.NewFilter(10, 0, 0.0001, wire.BloomUpdateAll)
	pg.filterMu.Lock()
	pg.filters[filtered] = filter
	pg.filterMu.Unlock()

	pg.RelayBlock(msgBlock, from)
}
