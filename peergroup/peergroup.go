// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peergroup implements PeerGroup (spec.md §4.6): the connection
// supervisor that discovers candidate addresses, maintains up to a
// configurable number of peer connections, elects a download peer by
// announced chain height, and fans out inventory broadcasts and message
// events to registered listeners.
package peergroup

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/lru"

	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/peer"
	"github.com/btcfullnode/node/util/bloom"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

const (
	// connectionLoopInterval is how often the supervisor checks whether
	// more connections are needed.
	connectionLoopInterval = 2 * time.Second

	// minBackoff and maxBackoff bound the exponential backoff applied
	// to a candidate address after a failed connection attempt
	// (spec.md §4.6: "recently-failed, weighted by exponential
	// backoff").
	minBackoff = 5 * time.Second
	maxBackoff = 5 * time.Minute

	// seenAddressCacheSize bounds the LRU used to avoid re-adding
	// addresses the candidate pool has already retired.
	seenAddressCacheSize = 2500

	// broadcastTimeout bounds how long BroadcastTransaction waits for
	// minBroadcastConnections peers to request the transaction back.
	broadcastTimeout = 30 * time.Second

	// blockRequestTimeout bounds how long a getdata for a block may go
	// unanswered before the peer that owes it is disconnected (spec.md
	// §5), mirroring peer.blockRequestTimeout.
	blockRequestTimeout = 60 * time.Second
)

// Listeners are invoked as the PeerGroup observes connection and message
// events across all of its peers.
type Listeners struct {
	OnPeerConnected    func(p *peer.Peer)
	OnPeerDisconnected func(p *peer.Peer)
	OnTransaction      func(p *peer.Peer, tx *wire.MsgTx)
	OnBlock            func(p *peer.Peer, block *wire.MsgBlock)
}

// Config holds the configuration a PeerGroup is constructed with
// (spec.md §6's PeerGroup configuration options).
type Config struct {
	NetParams *params.Params

	UserAgentName    string
	UserAgentVersion string

	// MaxConnections is the target number of simultaneous outbound
	// connections. It may be changed at runtime via SetMaxConnections.
	MaxConnections int

	// ConnectTimeout bounds dialing and the version/verack handshake
	// for a single connection attempt.
	ConnectTimeout time.Duration

	// MinBroadcastConnections is how many peers must request a
	// broadcast transaction back before BroadcastTransaction returns
	// successfully.
	MinBroadcastConnections int

	// DownloadTxDependencies is carried in the configuration for mempool
	// policy callers. PeerGroup itself does not read it and never requests
	// the unconfirmed parents of a transaction.
	DownloadTxDependencies bool

	// Seeds are explicitly configured bootstrap addresses ("host:port"),
	// used in addition to DNS seeding.
	Seeds []string

	// ChainHeight returns the local best chain height, advertised to
	// peers during the handshake.
	ChainHeight func() int32

	// BlockLocator returns the local chain's block locator, used to
	// request missing blocks from the elected download peer (spec.md
	// §4.6). Block download is disabled if nil.
	BlockLocator func() ([]*chainhash.Hash, error)

	// Dial opens a connection to a candidate address. Defaults to
	// net.Dialer.Dial with ConnectTimeout if nil.
	Dial func(network, address string) (net.Conn, error)

	// Lookup resolves DNS seed hostnames. Defaults to net.LookupIP if
	// nil.
	Lookup func(host string) ([]net.IP, error)

	Listeners Listeners
}

// candidate is an address the connection loop may attempt, together with
// its discovery and attempt history (spec.md §4.6's candidate pool).
type candidate struct {
	addr        string
	lastSeen    time.Time
	lastAttempt time.Time
	failures    int
}

func (c *candidate) backoff() time.Duration {
	if c.failures == 0 {
		return 0
	}
	d := minBackoff << uint(c.failures-1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func (c *candidate) eligible(now time.Time) bool {
	if c.lastAttempt.IsZero() {
		return true
	}
	return now.Sub(c.lastAttempt) >= c.backoff()
}

// PeerGroup discovers, connects to, and supervises a set of peer
// connections (spec.md §4.6).
type PeerGroup struct {
	cfg Config

	maxConnections int32 // atomic

	mu         sync.Mutex
	candidates map[string]*candidate
	peers      map[string]*peer.Peer
	seen       *lru.Cache

	downloadMu   sync.Mutex
	downloadPeer *peer.Peer

	broadcastMu sync.Mutex
	broadcasts  map[chainhash.Hash]*broadcastState

	handshakeMu      sync.Mutex
	handshakeWaiters map[*peer.Peer]chan struct{}

	filterMu sync.Mutex
	filters  map[*peer.Peer]*bloom.Filter

	blockReqMu sync.Mutex
	blockReqs  map[*peer.Peer]map[chainhash.Hash]*blockRequestDeadline

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

type broadcastState struct {
	tx      *wire.MsgTx
	count   int
	done    chan struct{}
	doneFor sync.Once
}

// blockRequestDeadline tracks a getdata for a block that a peer owes us,
// cleared either by the block arriving or by blockRequestTimeout expiring
// (spec.md §4.5, §5: "per-request deadline").
type blockRequestDeadline struct {
	done chan struct{}
	once sync.Once
}

func (d *blockRequestDeadline) fulfill() {
	d.once.Do(func() { close(d.done) })
}

// New constructs a PeerGroup from cfg. It does not begin connecting until
// Start is called.
func New(cfg *Config) (*PeerGroup, error) {
	if cfg.NetParams == nil {
		return nil, fmt.Errorf("peergroup: NetParams is required")
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 8
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MinBroadcastConnections <= 0 {
		cfg.MinBroadcastConnections = 1
	}
	if cfg.Dial == nil {
		cfg.Dial = func(network, address string) (net.Conn, error) {
			return net.DialTimeout(network, address, cfg.ConnectTimeout)
		}
	}
	if cfg.Lookup == nil {
		cfg.Lookup = net.LookupIP
	}

	pg := &PeerGroup{
		cfg:              *cfg,
		candidates:       make(map[string]*candidate),
		peers:            make(map[string]*peer.Peer),
		seen:             lru.NewCache(seenAddressCacheSize),
		broadcasts:       make(map[chainhash.Hash]*broadcastState),
		handshakeWaiters: make(map[*peer.Peer]chan struct{}),
		filters:          make(map[*peer.Peer]*bloom.Filter),
		blockReqs:        make(map[*peer.Peer]map[chainhash.Hash]*blockRequestDeadline),
		quit:             make(chan struct{}),
	}
	atomic.StoreInt32(&pg.maxConnections, int32(cfg.MaxConnections))

	for _, addr := range cfg.Seeds {
		pg.AddAddress(addr)
	}

	return pg, nil
}

// SetMaxConnections changes the connection target at runtime.
func (pg *PeerGroup) SetMaxConnections(n int) {
	atomic.StoreInt32(&pg.maxConnections, int32(n))
}

func (pg *PeerGroup) maxConns() int {
	return int(atomic.LoadInt32(&pg.maxConnections))
}

// Start launches DNS discovery and the connection supervisor loop.
func (pg *PeerGroup) Start() {
	SeedFromDNS(pg.cfg.NetParams, pg.cfg.Lookup, func(addrs []*wire.NetAddress) {
		for _, addr := range addrs {
			pg.AddAddress(net.JoinHostPort(addr.IP.String(), fmt.Sprintf("%d", addr.Port)))
		}
	})

	pg.wg.Add(1)
	spawn(func() {
		defer pg.wg.Done()
		pg.connectionLoop()
	})
}

// Stop cancels discovery and the connection loop and disconnects every
// connected peer (spec.md §5: "closing sockets, canceling in-flight
// attempts, draining the supervisor").
func (pg *PeerGroup) Stop() {
	pg.quitOnce.Do(func() {
		close(pg.quit)
	})

	pg.mu.Lock()
	peers := make([]*peer.Peer, 0, len(pg.peers))
	for _, p := range pg.peers {
		peers = append(peers, p)
	}
	pg.mu.Unlock()

	for _, p := range peers {
		p.Disconnect()
	}
	for _, p := range peers {
		p.WaitForDisconnect()
	}

	pg.wg.Wait()
}

// AddAddress registers addr as a connection candidate if it isn't already
// known (spec.md §4.6: discovery sources feed a shared candidate pool).
func (pg *PeerGroup) AddAddress(addr string) {
	if pg.seen.Contains(addr) {
		return
	}
	pg.seen.Add(addr)

	pg.mu.Lock()
	defer pg.mu.Unlock()
	if _, ok := pg.candidates[addr]; ok {
		return
	}
	pg.candidates[addr] = &candidate{addr: addr, lastSeen: time.Now()}
}

// ConnectedPeerCount returns the number of currently connected peers.
func (pg *PeerGroup) ConnectedPeerCount() int {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	return len(pg.peers)
}

func (pg *PeerGroup) connectionLoop() {
	ticker := time.NewTicker(connectionLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pg.fillConnections()
		case <-pg.quit:
			return
		}
	}
}

func (pg *PeerGroup) fillConnections() {
	for missing := pg.maxConns() - pg.ConnectedPeerCount(); missing > 0; missing-- {
		c := pg.selectCandidate()
		if c == nil {
			return
		}
		pg.wg.Add(1)
		spawn(func() {
			defer pg.wg.Done()
			pg.connectTo(c)
		})
	}
}

// selectCandidate prefers a never-attempted address, then the most
// recently seen address whose backoff has elapsed (spec.md §4.6:
// "prefer-unseen > recently-seen > recently-failed").
func (pg *PeerGroup) selectCandidate() *candidate {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	now := time.Now()
	var unseen, seen []*candidate
	for addr, c := range pg.candidates {
		if _, connected := pg.peers[addr]; connected {
			continue
		}
		if !c.eligible(now) {
			continue
		}
		if c.lastAttempt.IsZero() {
			unseen = append(unseen, c)
		} else {
			seen = append(seen, c)
		}
	}

	pick := func(cands []*candidate) *candidate {
		if len(cands) == 0 {
			return nil
		}
		return cands[rand.Intn(len(cands))]
	}

	if c := pick(unseen); c != nil {
		c.lastAttempt = now
		return c
	}
	var best *candidate
	for _, c := range seen {
		if best == nil || c.lastSeen.After(best.lastSeen) {
			best = c
		}
	}
	if best != nil {
		best.lastAttempt = now
	}
	return best
}

func (pg *PeerGroup) connectTo(c *candidate) {
	conn, err := pg.cfg.Dial("tcp", c.addr)
	if err != nil {
		log.Debugf("dialing %s: %v", c.addr, err)
		pg.recordFailure(c)
		return
	}

	p, err := pg.newOutboundPeer(c.addr)
	if err != nil {
		conn.Close()
		pg.recordFailure(c)
		return
	}

	handshake := make(chan struct{})
	pg.registerHandshakeWaiter(p, handshake)

	if err := p.AssociateConnection(conn); err != nil {
		pg.recordFailure(c)
		return
	}

	select {
	case <-handshake:
		pg.mu.Lock()
		c.failures = 0
		pg.mu.Unlock()
	case <-time.After(pg.cfg.ConnectTimeout):
		p.Disconnect()
		pg.recordFailure(c)
	case <-pg.quit:
		p.Disconnect()
	}
}

func (pg *PeerGroup) recordFailure(c *candidate) {
	pg.mu.Lock()
	c.failures++
	pg.mu.Unlock()
}

// registerHandshakeWaiter arranges for handshake to be closed once p
// reaches StateConnected, bridging the OnVerAck listener event wired in
// peerConfig to connectTo's select.
func (pg *PeerGroup) registerHandshakeWaiter(p *peer.Peer, handshake chan struct{}) {
	pg.handshakeMu.Lock()
	pg.handshakeWaiters[p] = handshake
	pg.handshakeMu.Unlock()
}

func (pg *PeerGroup) newOutboundPeer(addr string) (*peer.Peer, error) {
	cfg := pg.peerConfig()
	return peer.NewOutboundPeer(cfg, addr)
}

func (pg *PeerGroup) peerConfig() *peer.Config {
	return &peer.Config{
		NetParams:        pg.cfg.NetParams,
		UserAgentName:    pg.cfg.UserAgentName,
		UserAgentVersion: pg.cfg.UserAgentVersion,
		ChainHeight:      pg.cfg.ChainHeight,
		Listeners: peer.MessageListeners{
			OnVerAck: pg.onVerAck,
			OnAddr:   pg.onAddr,
			OnGetAddr: func(p *peer.Peer, msg *wire.MsgGetAddr) {
				pg.replyGetAddr(p)
			},
			OnTx:  pg.onTx,
			OnInv: pg.onInv,
			OnGetData: func(p *peer.Peer, msg *wire.MsgGetData) {
				pg.onGetData(p, msg)
			},
			OnBlock: func(p *peer.Peer, msg *wire.MsgBlock, buf []byte) {
				pg.fulfillBlockRequest(p, msg.BlockHash())
				if pg.cfg.Listeners.OnBlock != nil {
					pg.cfg.Listeners.OnBlock(p, msg)
				}
			},
			OnFilterLoad: pg.onFilterLoad,
			OnFilterAdd:  pg.onFilterAdd,
			OnFilterClear: func(p *peer.Peer, msg *wire.MsgFilterClear) {
				pg.filterMu.Lock()
				delete(pg.filters, p)
				pg.filterMu.Unlock()
			},
		},
	}
}

// onFilterLoad installs or replaces p's bloom filter (spec.md §4.1
// filterload), after which tx and block relay to p is restricted to what
// the filter matches.
func (pg *PeerGroup) onFilterLoad(p *peer.Peer, msg *wire.MsgFilterLoad) {
	filter, err := bloom.LoadFilterFromMsg(msg)
	if err != nil {
		log.Debugf("peer %s: rejecting filterload: %v", p, err)
		return
	}
	pg.filterMu.Lock()
	pg.filters[p] = filter
	pg.filterMu.Unlock()
}

// onFilterAdd folds msg.Data into p's existing filter (spec.md §4.1
// filteradd). A filteradd received without a prior filterload is ignored.
func (pg *PeerGroup) onFilterAdd(p *peer.Peer, msg *wire.MsgFilterAdd) {
	pg.filterMu.Lock()
	filter, ok := pg.filters[p]
	pg.filterMu.Unlock()
	if !ok {
		log.Debugf("peer %s: filteradd with no loaded filter", p)
		return
	}
	filter.Add(msg.Data)
}

// peerFilter returns p's loaded filter, if any.
func (pg *PeerGroup) peerFilter(p *peer.Peer) (*bloom.Filter, bool) {
	pg.filterMu.Lock()
	defer pg.filterMu.Unlock()
	filter, ok := pg.filters[p]
	return filter, ok
}

// wantsTx reports whether tx should be announced to p: peers with no
// loaded filter get everything, filtered peers only what their bloom
// filter matches (spec.md §4.1, §4.5).
func (pg *PeerGroup) wantsTx(p *peer.Peer, tx *wire.MsgTx) bool {
	filter, ok := pg.peerFilter(p)
	if !ok {
		return true
	}
	return filter.MatchTxAndUpdate(tx)
}

// RelayBlock forwards a block just received from one peer to the rest of
// the connected set (spec.md §4.1, §4.5): peers with no loaded filter get
// a full-block inv, filtered peers get a merkleblock naming only the
// transactions their filter matches, followed by those transactions
// themselves.
func (pg *PeerGroup) RelayBlock(msgBlock *wire.MsgBlock, from *peer.Peer) {
	pg.mu.Lock()
	peers := make([]*peer.Peer, 0, len(pg.peers))
	for _, p := range pg.peers {
		if p != from {
			peers = append(peers, p)
		}
	}
	pg.mu.Unlock()
	if len(peers) == 0 {
		return
	}

	hash := msgBlock.BlockHash()
	inv := wire.NewMsgInv()
	_ = inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash))

	var block *blockutil.Block
	for _, p := range peers {
		filter, ok := pg.peerFilter(p)
		if !ok {
			p.QueueMessage(inv, nil)
			continue
		}
		if block == nil {
			block = blockutil.NewBlock(msgBlock)
		}
		merkleBlock, matched := bloom.NewMerkleBlock(block, filter)
		p.QueueMessage(merkleBlock, nil)
		for _, idx := range matched {
			p.QueueMessage(msgBlock.Transactions[idx], nil)
		}
	}
}

func (pg *PeerGroup) onVerAck(p *peer.Peer, msg *wire.MsgVerAck) {
	pg.mu.Lock()
	pg.peers[p.Addr()] = p
	pg.mu.Unlock()

	pg.handshakeMu.Lock()
	if ch, ok := pg.handshakeWaiters[p]; ok {
		close(ch)
		delete(pg.handshakeWaiters, p)
	}
	pg.handshakeMu.Unlock()

	if pg.cfg.Listeners.OnPeerConnected != nil {
		pg.cfg.Listeners.OnPeerConnected(p)
	}
	pg.electDownloadPeer()

	pg.wg.Add(1)
	spawn(func() {
		defer pg.wg.Done()
		p.WaitForDisconnect()
		pg.unregisterPeer(p)
	})
}

func (pg *PeerGroup) unregisterPeer(p *peer.Peer) {
	pg.mu.Lock()
	delete(pg.peers, p.Addr())
	pg.mu.Unlock()

	pg.downloadMu.Lock()
	wasDownloadPeer := pg.downloadPeer == p
	if wasDownloadPeer {
		pg.downloadPeer = nil
	}
	pg.downloadMu.Unlock()

	pg.filterMu.Lock()
	delete(pg.filters, p)
	pg.filterMu.Unlock()

	pg.blockReqMu.Lock()
	if reqs, ok := pg.blockReqs[p]; ok {
		for _, d := range reqs {
			d.fulfill()
		}
		delete(pg.blockReqs, p)
	}
	pg.blockReqMu.Unlock()

	if pg.cfg.Listeners.OnPeerDisconnected != nil {
		pg.cfg.Listeners.OnPeerDisconnected(p)
	}
	if wasDownloadPeer {
		pg.electDownloadPeer()
	}
}

// electDownloadPeer chooses the connected peer with the greatest
// announced chain height, breaking ties by lowest ping time (spec.md
// §4.6).
func (pg *PeerGroup) electDownloadPeer() {
	pg.mu.Lock()
	var best *peer.Peer
	for _, p := range pg.peers {
		if p.State() != peer.StateConnected {
			continue
		}
		if best == nil || p.LastBlock() > best.LastBlock() ||
			(p.LastBlock() == best.LastBlock() && p.PingTime() < best.PingTime()) {
			best = p
		}
	}
	pg.mu.Unlock()

	pg.downloadMu.Lock()
	changed := pg.downloadPeer != best
	if pg.downloadPeer != nil {
		pg.downloadPeer.SetDownloadPeer(false)
	}
	pg.downloadPeer = best
	if best != nil {
		best.SetDownloadPeer(true)
	}
	pg.downloadMu.Unlock()

	if changed && best != nil {
		pg.requestBlocks(best)
	}
}

// DownloadPeer returns the currently elected download peer, or nil if
// none is connected.
func (pg *PeerGroup) DownloadPeer() *peer.Peer {
	pg.downloadMu.Lock()
	defer pg.downloadMu.Unlock()
	return pg.downloadPeer
}

func (pg *PeerGroup) onAddr(p *peer.Peer, msg *wire.MsgAddr) {
	for _, na := range msg.AddrList {
		pg.AddAddress(net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port)))
	}
}

func (pg *PeerGroup) replyGetAddr(p *peer.Peer) {
	pg.mu.Lock()
	addrs := make([]*wire.NetAddress, 0, len(pg.candidates))
	for _, c := range pg.candidates {
		host, portStr, err := net.SplitHostPort(c.addr)
		if err != nil {
			continue
		}
		ip := net.ParseIP(host)
		if ip == nil {
			continue
		}
		var port uint16
		fmt.Sscanf(portStr, "%d", &port)
		addrs = append(addrs, wire.NewNetAddressTimestamp(c.lastSeen, 0, ip, port))
		if len(addrs) >= wire.MaxAddrPerMsg {
			break
		}
	}
	pg.mu.Unlock()

	msg := wire.NewMsgAddr()
	_ = msg.AddAddresses(addrs...)
	p.QueueMessage(msg, nil)
}

func (pg *PeerGroup) onTx(p *peer.Peer, tx *wire.MsgTx) {
	if pg.cfg.Listeners.OnTransaction != nil {
		pg.cfg.Listeners.OnTransaction(p, tx)
	}
}

func (pg *PeerGroup) onGetData(p *peer.Peer, msg *wire.MsgGetData) {
	for _, iv := range msg.InvList {
		if iv.Type != wire.InvTypeTx {
			continue
		}
		pg.broadcastMu.Lock()
		state, ok := pg.broadcasts[iv.Hash]
		pg.broadcastMu.Unlock()
		if !ok {
			continue
		}
		p.QueueMessage(state.tx, nil)

		pg.broadcastMu.Lock()
		state.count++
		if state.count >= pg.cfg.MinBroadcastConnections {
			state.doneFor.Do(func() { close(state.done) })
		}
		pg.broadcastMu.Unlock()
	}
}

// onInv responds to a peer's inventory announcement by requesting any
// blocks it doesn't already have (spec.md §4.5, §4.6: an inv drives
// getdata, which drives block-chain download). When an inv carries a full
// wire.MaxInvPerMsg block entries, requestBlocks is called again right after
// the getdata is sent, so download continues past the peer's per-message
// inventory cap.
func (pg *PeerGroup) onInv(p *peer.Peer, msg *wire.MsgInv) {
	var blockInvs []*wire.InvVect
	for _, iv := range msg.InvList {
		if iv.Type != wire.InvTypeBlock {
			continue
		}
		blockInvs = append(blockInvs, iv)
	}
	if len(blockInvs) == 0 {
		return
	}

	pg.blockReqMu.Lock()
	reqs, ok := pg.blockReqs[p]
	if !ok {
		reqs = make(map[chainhash.Hash]*blockRequestDeadline)
		pg.blockReqs[p] = reqs
	}
	var toRequest []*wire.InvVect
	for _, iv := range blockInvs {
		if _, pending := reqs[iv.Hash]; pending {
			continue
		}
		d := &blockRequestDeadline{done: make(chan struct{})}
		reqs[iv.Hash] = d
		toRequest = append(toRequest, iv)
		pg.watchBlockRequest(p, iv.Hash, d)
	}
	pg.blockReqMu.Unlock()

	p.PushGetDataMsg(toRequest)

	if len(blockInvs) == wire.MaxInvPerMsg {
		pg.requestBlocks(p)
	}
}

// watchBlockRequest disconnects p if the block requested via getdata for
// hash doesn't arrive within blockRequestTimeout (spec.md §5).
func (pg *PeerGroup) watchBlockRequest(p *peer.Peer, hash chainhash.Hash, d *blockRequestDeadline) {
	pg.wg.Add(1)
	spawn(func() {
		defer pg.wg.Done()
		select {
		case <-d.done:
		case <-time.After(blockRequestTimeout):
			log.Debugf("peer %s: getdata for block %s timed out", p, hash)
			p.Disconnect()
		case <-pg.quit:
		}
		pg.blockReqMu.Lock()
		if reqs, ok := pg.blockReqs[p]; ok {
			delete(reqs, hash)
		}
		pg.blockReqMu.Unlock()
	})
}

// fulfillBlockRequest clears the deadline for a block p owed us, once it
// has arrived.
func (pg *PeerGroup) fulfillBlockRequest(p *peer.Peer, hash chainhash.Hash) {
	pg.blockReqMu.Lock()
	defer pg.blockReqMu.Unlock()
	reqs, ok := pg.blockReqs[p]
	if !ok {
		return
	}
	if d, ok := reqs[hash]; ok {
		d.fulfill()
		delete(reqs, hash)
	}
}

// requestBlocks asks p, expected to be the elected download peer, for
// inventory beyond the local chain tip (spec.md §4.6).
func (pg *PeerGroup) requestBlocks(p *peer.Peer) {
	if pg.cfg.BlockLocator == nil {
		return
	}
	locator, err := pg.cfg.BlockLocator()
	if err != nil {
		log.Debugf("peer %s: building block locator: %v", p, err)
		return
	}
	p.PushGetBlocksMsg(locator, &chainhash.Hash{})
}

// BroadcastTransaction announces tx to every connected peer via inv and
// blocks until at least MinBroadcastConnections of them have requested it
// back, or until broadcastTimeout elapses (spec.md §4.6).
func (pg *PeerGroup) BroadcastTransaction(tx *wire.MsgTx) error {
	hash := tx.TxHash()

	state := &broadcastState{tx: tx, done: make(chan struct{})}
	pg.broadcastMu.Lock()
	pg.broadcasts[hash] = state
	pg.broadcastMu.Unlock()
	defer func() {
		pg.broadcastMu.Lock()
		delete(pg.broadcasts, hash)
		pg.broadcastMu.Unlock()
	}()

	inv := wire.NewMsgInv()
	_ = inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash))

	pg.mu.Lock()
	peers := make([]*peer.Peer, 0, len(pg.peers))
	for _, p := range pg.peers {
		peers = append(peers, p)
	}
	pg.mu.Unlock()

	if len(peers) == 0 {
		return fmt.Errorf("peergroup: no connected peers to broadcast to")
	}
	for _, p := range peers {
		if !pg.wantsTx(p, tx) {
			continue
		}
		p.QueueMessage(inv, nil)
	}

	select {
	case <-state.done:
		return nil
	case <-time.After(broadcastTimeout):
		return fmt.Errorf("peergroup: broadcast of %s timed out waiting for %d peers",
			hash, pg.cfg.MinBroadcastConnections)
	case <-pg.quit:
		return fmt.Errorf("peergroup: stopped during broadcast of %s", hash)
	}
}
