// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements the connection state machine of spec.md §4.5: a
// single TCP connection to a remote Bitcoin node, carried through
// NEW -> HANDSHAKING -> CONNECTED -> DISCONNECTED, with ping/pong RTT
// tracking and inventory relay. Block-download deadlines are tracked by
// package peergroup, not here.
package peer

import (
	"container/list"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// State is the peer's position in the connection state machine (spec.md
// §4.5).
type State int32

const (
	StateNew State = iota
	StateHandshaking
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	// handshakeTimeout is how long a peer has to complete the version/
	// verack exchange before being disconnected (spec.md §4.5, §5).
	handshakeTimeout = 60 * time.Second

	// pingInterval is how often a ping is sent to a connected peer
	// (spec.md §4.5).
	pingInterval = 2 * time.Minute

	// pingTimeout is how long a peer may go without answering a ping
	// before being disconnected (spec.md §5).
	pingTimeout = 20 * time.Second

	// blockRequestTimeout is the block getdata deadline (spec.md §5). It
	// is not read in this package; package peergroup enforces its own
	// deadline on block requests.
	blockRequestTimeout = 60 * time.Second

	// trickleInterval is not read in this package: queued messages are
	// written one at a time as they are dequeued, not batched.
	trickleInterval = 10 * time.Second

	// outputBufferSize is the number of messages the outbound queue
	// may hold before QueueMessage blocks.
	outputBufferSize = 50

	// maxKnownInventory bounds the per-peer "already seen" inventory
	// set that PushGetDataMsg consults to skip items already received.
	maxKnownInventory = 1000

	// pingRTTAlpha weights the exponentially-weighted average RTT
	// (spec.md §4.5: "Maintain exponentially-weighted average").
	pingRTTAlpha = 0.2
)

// TimeoutError reports that a peer failed to respond within a bounded
// window: handshake, ping, or block request (spec.md §7).
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("peer: timed out waiting for %s", e.Op)
}

// MessageListeners defines the set of callbacks a Config may register to
// observe messages received from a peer. A listener left nil is simply not
// invoked.
type MessageListeners struct {
	OnVersion     func(p *Peer, msg *wire.MsgVersion)
	OnVerAck      func(p *Peer, msg *wire.MsgVerAck)
	OnPing        func(p *Peer, msg *wire.MsgPing)
	OnPong        func(p *Peer, msg *wire.MsgPong)
	OnInv         func(p *Peer, msg *wire.MsgInv)
	OnGetData     func(p *Peer, msg *wire.MsgGetData)
	OnNotFound    func(p *Peer, msg *wire.MsgNotFound)
	OnTx          func(p *Peer, msg *wire.MsgTx)
	OnBlock       func(p *Peer, msg *wire.MsgBlock, buf []byte)
	OnGetBlocks   func(p *Peer, msg *wire.MsgGetBlocks)
	OnGetHeaders  func(p *Peer, msg *wire.MsgGetHeaders)
	OnHeaders     func(p *Peer, msg *wire.MsgHeaders)
	OnAddr        func(p *Peer, msg *wire.MsgAddr)
	OnGetAddr     func(p *Peer, msg *wire.MsgGetAddr)
	OnFilterLoad  func(p *Peer, msg *wire.MsgFilterLoad)
	OnFilterAdd   func(p *Peer, msg *wire.MsgFilterAdd)
	OnFilterClear func(p *Peer, msg *wire.MsgFilterClear)
	OnMerkleBlock func(p *Peer, msg *wire.MsgMerkleBlock)
	OnReject      func(p *Peer, msg *wire.MsgReject)
	OnRead        func(p *Peer, bytesRead int, msg wire.Message, err error)
	OnWrite       func(p *Peer, bytesWritten int, msg wire.Message, err error)
}

// Config holds the configuration a Peer is constructed with (spec.md §6's
// PeerGroup configuration options apply per-connection here).
type Config struct {
	// NetParams identifies the network this peer speaks (magic,
	// protocol defaults).
	NetParams *params.Params

	// UserAgentName and UserAgentVersion are advertised in the version
	// message.
	UserAgentName    string
	UserAgentVersion string

	// Services are the service flags this node advertises.
	Services wire.ServiceFlag

	// ChainHeight returns the height of the local best chain, sent as
	// LastBlock in the version message.
	ChainHeight func() int32

	// Listeners are invoked as messages arrive from the peer.
	Listeners MessageListeners

	// AllowSelfConns disables the self-connection nonce check, for
	// tests that loop a peer back to itself.
	AllowSelfConns bool
}

// knownInventory is a small fixed-capacity set of the transactions and
// blocks received from a peer; PushGetDataMsg skips items already in it.
type knownInventory struct {
	mu    sync.Mutex
	order list.List
	seen  map[chainhash.Hash]*list.Element
}

func newKnownInventory() *knownInventory {
	return &knownInventory{seen: make(map[chainhash.Hash]*list.Element)}
}

func (k *knownInventory) add(hash chainhash.Hash) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.seen[hash]; ok {
		return
	}
	if k.order.Len() >= maxKnownInventory {
		oldest := k.order.Front()
		if oldest != nil {
			delete(k.seen, oldest.Value.(chainhash.Hash))
			k.order.Remove(oldest)
		}
	}
	k.seen[hash] = k.order.PushBack(hash)
}

func (k *knownInventory) has(hash chainhash.Hash) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.seen[hash]
	return ok
}

// outMsg is an item queued for the outbound writer goroutine.
type outMsg struct {
	msg  wire.Message
	done chan struct{}
}

// Peer represents a single connection to a remote node and drives it
// through the state machine of spec.md §4.5.
type Peer struct {
	cfg     Config
	inbound bool

	conn   net.Conn
	connMu sync.Mutex
	addr   string

	state int32 // atomic State

	versionSent     int32 // atomic bool
	verAckSent      int32 // atomic bool
	verAckReceived  int32 // atomic bool
	versionReceived int32 // atomic bool

	id       uint64
	services wire.ServiceFlag
	userAgent string
	lastBlock int32

	knownInventory *knownInventory

	statsMu          sync.RWMutex
	lastPingNonce    uint64
	lastPingTime     time.Time
	lastPingDuration time.Duration
	pingTimeAvg      time.Duration

	isDownloadPeer int32 // atomic bool

	outputQueue chan outMsg

	quit     chan struct{}
	quitOnce sync.Once

	disconnected  chan struct{}
	handshakeDone chan struct{}
	wg            sync.WaitGroup
}

// newPeerBase allocates a Peer in StateNew.
func newPeerBase(cfg *Config, inbound bool) *Peer {
	p := &Peer{
		cfg:            *cfg,
		inbound:        inbound,
		knownInventory: newKnownInventory(),
		outputQueue:    make(chan outMsg, outputBufferSize),
		quit:           make(chan struct{}),
		disconnected:   make(chan struct{}),
		handshakeDone:  make(chan struct{}),
		id:             rand.Uint64(),
	}
	atomic.StoreInt32(&p.state, int32(StateNew))
	return p
}

// NewOutboundPeer returns a new outbound peer configured to connect to
// addr. The connection is not established until AssociateConnection is
// called.
func NewOutboundPeer(cfg *Config, addr string) (*Peer, error) {
	p := newPeerBase(cfg, false)
	p.addr = addr
	return p, nil
}

// NewInboundPeer returns a new inbound peer. The connection is not driven
// until AssociateConnection is called.
func NewInboundPeer(cfg *Config) *Peer {
	return newPeerBase(cfg, true)
}

// Addr returns the peer's remote address.
func (p *Peer) Addr() string {
	return p.addr
}

// Inbound reports whether the peer connected to us, as opposed to us
// connecting to it.
func (p *Peer) Inbound() bool {
	return p.inbound
}

// State returns the peer's current connection state.
func (p *Peer) State() State {
	return State(atomic.LoadInt32(&p.state))
}

func (p *Peer) setState(s State) {
	atomic.StoreInt32(&p.state, int32(s))
}

// UserAgent returns the remote peer's advertised user agent, valid once the
// handshake has completed.
func (p *Peer) UserAgent() string {
	return p.userAgent
}

// LastBlock returns the remote peer's announced chain height, valid once
// the handshake has completed.
func (p *Peer) LastBlock() int32 {
	return atomic.LoadInt32(&p.lastBlock)
}

// Services returns the remote peer's advertised services.
func (p *Peer) Services() wire.ServiceFlag {
	return p.services
}

// IsDownloadPeer reports whether the PeerGroup has elected this peer as
// the block-download source (spec.md §4.6).
func (p *Peer) IsDownloadPeer() bool {
	return atomic.LoadInt32(&p.isDownloadPeer) != 0
}

// SetDownloadPeer marks or unmarks this peer as the elected download peer.
func (p *Peer) SetDownloadPeer(isDownloadPeer bool) {
	var v int32
	if isDownloadPeer {
		v = 1
	}
	atomic.StoreInt32(&p.isDownloadPeer, v)
}

// PingTime returns the exponentially-weighted average round-trip time of
// this peer's ping/pong samples (spec.md §4.5).
func (p *Peer) PingTime() time.Duration {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.pingTimeAvg
}

// LastPingTime returns the RTT of the most recent ping/pong sample.
func (p *Peer) LastPingTime() time.Duration {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.lastPingDuration
}

// AssociateConnection binds conn to the peer and starts the handshake and
// I/O goroutines. It returns once the connection has been accepted for
// driving; it does not wait for the handshake to complete.
func (p *Peer) AssociateConnection(conn net.Conn) error {
	p.connMu.Lock()
	if p.conn != nil {
		p.connMu.Unlock()
		return fmt.Errorf("peer: connection already associated")
	}
	p.conn = conn
	if p.addr == "" {
		p.addr = conn.RemoteAddr().String()
	}
	p.connMu.Unlock()

	p.setState(StateHandshaking)

	p.wg.Add(2)
	spawn(func() {
		defer p.wg.Done()
		p.inHandler()
	})
	spawn(func() {
		defer p.wg.Done()
		p.outHandler()
	})

	spawn(func() {
		p.waitForHandshake(p.handshakeDone)
	})

	if !p.inbound {
		if err := p.pushVersionMsg(); err != nil {
			p.Disconnect()
			return err
		}
	}

	return nil
}

func (p *Peer) waitForHandshake(done chan struct{}) {
	select {
	case <-done:
	case <-time.After(handshakeTimeout):
		log.Warnf("peer %s: %v", p.addr, &TimeoutError{Op: "handshake"})
		p.Disconnect()
	case <-p.quit:
	}
}

func (p *Peer) pushVersionMsg() error {
	height := int32(0)
	if p.cfg.ChainHeight != nil {
		height = p.cfg.ChainHeight()
	}
	me := wire.NewNetAddressIPPort(net.IPv4zero, 0, p.cfg.Services)
	you := wire.NewNetAddressIPPort(net.IPv4zero, 0, 0)
	msg := wire.NewMsgVersion(me, you, rand.Uint64(), height)
	msg.UserAgent = fmt.Sprintf("/%s:%s/", p.cfg.UserAgentName, p.cfg.UserAgentVersion)
	msg.Services = p.cfg.Services
	atomic.StoreInt32(&p.versionSent, 1)
	return p.writeMessage(msg)
}

// QueueMessage adds msg to the outbound queue. doneChan, if non-nil, is
// closed once msg has been written to the wire.
func (p *Peer) QueueMessage(msg wire.Message, doneChan chan struct{}) {
	select {
	case p.outputQueue <- outMsg{msg: msg, done: doneChan}:
	case <-p.quit:
		if doneChan != nil {
			close(doneChan)
		}
	}
}

func (p *Peer) outHandler() {
	for {
		select {
		case out := <-p.outputQueue:
			if err := p.writeMessage(out.msg); err != nil {
				log.Debugf("peer %s: write error: %v", p.addr, err)
				if out.done != nil {
					close(out.done)
				}
				p.Disconnect()
				return
			}
			if out.done != nil {
				close(out.done)
			}
		case <-p.quit:
			return
		}
	}
}

func (p *Peer) writeMessage(msg wire.Message) error {
	log.Tracef("peer %s: sending %s: %s", p.addr, msg.Command(), newLogClosure(func() string {
		return messageSummary(msg)
	}))
	magic := wire.MainNet
	if p.cfg.NetParams != nil {
		magic = p.cfg.NetParams.Net
	}
	n, err := func() (int, error) {
		p.connMu.Lock()
		conn := p.conn
		p.connMu.Unlock()
		if conn == nil {
			return 0, io.ErrClosedPipe
		}
		var written int
		countingWriter := &byteCountingWriter{w: conn, count: &written}
		if err := wire.WriteMessage(countingWriter, msg, wire.ProtocolVersion, magic); err != nil {
			return written, err
		}
		return written, nil
	}()
	if p.cfg.Listeners.OnWrite != nil {
		p.cfg.Listeners.OnWrite(p, n, msg, err)
	}
	return err
}

type byteCountingWriter struct {
	w     io.Writer
	count *int
}

func (b *byteCountingWriter) Write(p []byte) (int, error) {
	n, err := b.w.Write(p)
	*b.count += n
	return n, err
}

func (p *Peer) inHandler() {
	p.connMu.Lock()
	conn := p.conn
	p.connMu.Unlock()
	if conn == nil {
		return
	}

	magic := wire.MainNet
	if p.cfg.NetParams != nil {
		magic = p.cfg.NetParams.Net
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-pingTicker.C:
				p.sendPing()
			case <-p.quit:
				return
			}
		}
	}()

	for {
		msg, payload, err := wire.ReadMessage(conn, wire.ProtocolVersion, magic)
		if p.cfg.Listeners.OnRead != nil {
			p.cfg.Listeners.OnRead(p, len(payload), msg, err)
		}
		if err != nil {
			if _, ok := err.(*wire.UnknownMessageError); ok {
				log.Debugf("peer %s: skipping unknown message: %v", p.addr, err)
				continue
			}
			log.Debugf("peer %s: read error: %v", p.addr, err)
			p.Disconnect()
			return
		}

		log.Tracef("peer %s: received %s: %s", p.addr, msg.Command(), newLogClosure(func() string {
			return messageSummary(msg)
		}))

		if err := p.handleMessage(msg); err != nil {
			log.Debugf("peer %s: handling %s: %v", p.addr, msg.Command(), err)
			p.Disconnect()
			return
		}

		select {
		case <-p.quit:
			return
		default:
		}
	}
}

func (p *Peer) handleMessage(msg wire.Message) error {
	switch m := msg.(type) {
	case *wire.MsgVersion:
		return p.handleVersionMsg(m)
	case *wire.MsgVerAck:
		return p.handleVerAckMsg(m)
	case *wire.MsgPing:
		return p.handlePingMsg(m)
	case *wire.MsgPong:
		return p.handlePongMsg(m)
	case *wire.MsgInv:
		if p.cfg.Listeners.OnInv != nil {
			p.cfg.Listeners.OnInv(p, m)
		}
	case *wire.MsgGetData:
		if p.cfg.Listeners.OnGetData != nil {
			p.cfg.Listeners.OnGetData(p, m)
		}
	case *wire.MsgNotFound:
		if p.cfg.Listeners.OnNotFound != nil {
			p.cfg.Listeners.OnNotFound(p, m)
		}
	case *wire.MsgTx:
		p.knownInventory.add(m.TxHash())
		if p.cfg.Listeners.OnTx != nil {
			p.cfg.Listeners.OnTx(p, m)
		}
	case *wire.MsgBlock:
		p.knownInventory.add(m.BlockHash())
		if p.cfg.Listeners.OnBlock != nil {
			p.cfg.Listeners.OnBlock(p, m, nil)
		}
	case *wire.MsgGetBlocks:
		if p.cfg.Listeners.OnGetBlocks != nil {
			p.cfg.Listeners.OnGetBlocks(p, m)
		}
	case *wire.MsgGetHeaders:
		if p.cfg.Listeners.OnGetHeaders != nil {
			p.cfg.Listeners.OnGetHeaders(p, m)
		}
	case *wire.MsgHeaders:
		if p.cfg.Listeners.OnHeaders != nil {
			p.cfg.Listeners.OnHeaders(p, m)
		}
	case *wire.MsgAddr:
		if p.cfg.Listeners.OnAddr != nil {
			p.cfg.Listeners.OnAddr(p, m)
		}
	case *wire.MsgGetAddr:
		if p.cfg.Listeners.OnGetAddr != nil {
			p.cfg.Listeners.OnGetAddr(p, m)
		}
	case *wire.MsgFilterLoad:
		if p.cfg.Listeners.OnFilterLoad != nil {
			p.cfg.Listeners.OnFilterLoad(p, m)
		}
	case *wire.MsgFilterAdd:
		if p.cfg.Listeners.OnFilterAdd != nil {
			p.cfg.Listeners.OnFilterAdd(p, m)
		}
	case *wire.MsgFilterClear:
		if p.cfg.Listeners.OnFilterClear != nil {
			p.cfg.Listeners.OnFilterClear(p, m)
		}
	case *wire.MsgMerkleBlock:
		if p.cfg.Listeners.OnMerkleBlock != nil {
			p.cfg.Listeners.OnMerkleBlock(p, m)
		}
	case *wire.MsgReject:
		if p.cfg.Listeners.OnReject != nil {
			p.cfg.Listeners.OnReject(p, m)
		}
	}
	return nil
}

func (p *Peer) handleVersionMsg(msg *wire.MsgVersion) error {
	if atomic.SwapInt32(&p.versionReceived, 1) != 0 {
		return fmt.Errorf("duplicate version message")
	}
	if !p.cfg.AllowSelfConns && msg.Nonce == p.id {
		return fmt.Errorf("disconnecting self connection")
	}

	p.services = msg.Services
	p.userAgent = msg.UserAgent
	atomic.StoreInt32(&p.lastBlock, msg.LastBlock)

	if p.cfg.Listeners.OnVersion != nil {
		p.cfg.Listeners.OnVersion(p, msg)
	}

	if p.inbound {
		if err := p.pushVersionMsg(); err != nil {
			return err
		}
	}

	atomic.StoreInt32(&p.verAckSent, 1)
	if err := p.writeMessage(wire.NewMsgVerAck()); err != nil {
		return err
	}
	return nil
}

func (p *Peer) handleVerAckMsg(msg *wire.MsgVerAck) error {
	atomic.StoreInt32(&p.verAckReceived, 1)
	if atomic.LoadInt32(&p.verAckSent) != 0 {
		p.setState(StateConnected)
		p.signalHandshakeDone()
	}
	if p.cfg.Listeners.OnVerAck != nil {
		p.cfg.Listeners.OnVerAck(p, msg)
	}
	return nil
}

// signalHandshakeDone closes handshakeDone exactly once, unblocking
// waitForHandshake.
func (p *Peer) signalHandshakeDone() {
	select {
	case <-p.handshakeDone:
	default:
		close(p.handshakeDone)
	}
}

func (p *Peer) handlePingMsg(msg *wire.MsgPing) error {
	if p.cfg.Listeners.OnPing != nil {
		p.cfg.Listeners.OnPing(p, msg)
	}
	return p.writeMessage(wire.NewMsgPong(msg.Nonce))
}

func (p *Peer) sendPing() {
	nonce := rand.Uint64()
	p.statsMu.Lock()
	p.lastPingNonce = nonce
	p.lastPingTime = time.Now()
	p.statsMu.Unlock()
	p.QueueMessage(wire.NewMsgPing(nonce), nil)

	spawn(func() {
		select {
		case <-time.After(pingTimeout):
			p.statsMu.RLock()
			stillPending := p.lastPingNonce == nonce
			p.statsMu.RUnlock()
			if stillPending {
				log.Warnf("peer %s: %v", p.addr, &TimeoutError{Op: "pong"})
				p.Disconnect()
			}
		case <-p.quit:
		}
	})
}

func (p *Peer) handlePongMsg(msg *wire.MsgPong) error {
	p.statsMu.Lock()
	if msg.Nonce == p.lastPingNonce && p.lastPingNonce != 0 {
		rtt := time.Since(p.lastPingTime)
		p.lastPingDuration = rtt
		if p.pingTimeAvg == 0 {
			p.pingTimeAvg = rtt
		} else {
			p.pingTimeAvg = time.Duration(pingRTTAlpha*float64(rtt) + (1-pingRTTAlpha)*float64(p.pingTimeAvg))
		}
		p.lastPingNonce = 0
	}
	p.statsMu.Unlock()
	if p.cfg.Listeners.OnPong != nil {
		p.cfg.Listeners.OnPong(p, msg)
	}
	return nil
}

// PushGetBlocksMsg requests inventory for blocks between locator and
// stopHash (spec.md §4.5 block download).
func (p *Peer) PushGetBlocksMsg(locator []*chainhash.Hash, stopHash *chainhash.Hash) {
	msg := wire.NewMsgGetBlocks(stopHash)
	for _, hash := range locator {
		_ = msg.AddBlockLocatorHash(hash)
	}
	p.QueueMessage(msg, nil)
}

// PushGetDataMsg requests the inventory items in invList (spec.md §4.5:
// "filter items already known; send getdata for the remainder").
func (p *Peer) PushGetDataMsg(invList []*wire.InvVect) {
	msg := wire.NewMsgGetData()
	for _, iv := range invList {
		if p.knownInventory.has(iv.Hash) {
			continue
		}
		_ = msg.AddInvVect(iv)
	}
	if len(msg.InvList) > 0 {
		p.QueueMessage(msg, nil)
	}
}

// Disconnect closes the underlying connection and transitions the peer to
// StateDisconnected, idempotently.
func (p *Peer) Disconnect() {
	p.quitOnce.Do(func() {
		p.setState(StateDisconnected)
		close(p.quit)
		p.connMu.Lock()
		if p.conn != nil {
			p.conn.Close()
		}
		p.connMu.Unlock()
		spawn(func() {
			p.wg.Wait()
			close(p.disconnected)
		})
	})
}

// WaitForDisconnect blocks until the peer's I/O goroutines have exited.
func (p *Peer) WaitForDisconnect() {
	<-p.disconnected
}

func (p *Peer) String() string {
	dir := "outbound"
	if p.inbound {
		dir = "inbound"
	}
	return fmt.Sprintf("%s (%s)", p.addr, dir)
}
