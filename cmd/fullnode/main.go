// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/btcfullnode/node/blockchain"
	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/config"
	"github.com/btcfullnode/node/database/leveldbstore"
	"github.com/btcfullnode/node/logger"
	"github.com/btcfullnode/node/peer"
	"github.com/btcfullnode/node/peergroup"
	"github.com/btcfullnode/node/store"
	"github.com/btcfullnode/node/wire"
)

const (
	userAgentName    = "fullnode"
	userAgentVersion = "0.1.0"
)

// fullnode wires together the store, chain, and peergroup services that
// make up a running node.
type fullnode struct {
	cfg       *config.Config
	chain     *blockchain.BlockChain
	peerGroup *peergroup.PeerGroup
	db        *leveldbstore.LevelDBStore
}

func newFullnode(cfg *config.Config) (*fullnode, error) {
	dbPath := filepath.Join(cfg.DataDir, "blocks")
	db, err := leveldbstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening block database: %w", err)
	}

	blockStore := store.New(db)
	chain, err := blockchain.New(cfg.NetParams(), blockStore)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing chain: %w", err)
	}

	var peerGroup *peergroup.PeerGroup
	pgCfg := &peergroup.Config{
		NetParams:        cfg.NetParams(),
		UserAgentName:    userAgentName,
		UserAgentVersion: userAgentVersion,
		MaxConnections:   cfg.MaxPeers,
		Seeds:            append(append([]string{}, cfg.AddPeers...), cfg.Connect...),
		ChainHeight: func() int32 {
			head, err := blockStore.GetChainHead()
			if err != nil {
				return 0
			}
			return int32(head.Height)
		},
		BlockLocator:            chain.BlockLocator,
		MinBroadcastConnections: 1,
		Listeners: peergroup.Listeners{
			OnPeerConnected: func(p *peer.Peer) {
				log.Infof("peer %s connected", p)
			},
			OnPeerDisconnected: func(p *peer.Peer) {
				log.Infof("peer %s disconnected", p)
			},
			OnBlock: func(p *peer.Peer, msg *wire.MsgBlock) {
				handleReceivedBlock(chain, peerGroup, p, msg)
			},
		},
	}
	if cfg.NoDNSSeed {
		pgCfg.Lookup = func(string) ([]net.IP, error) { return nil, nil }
	}

	peerGroup, err = peergroup.New(pgCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing peer group: %w", err)
	}

	return &fullnode{cfg: cfg, chain: chain, peerGroup: peerGroup, db: db}, nil
}

func (n *fullnode) start() {
	log.Infof("starting fullnode on %s", n.cfg.NetParams().Name)
	n.peerGroup.Start()
}

func (n *fullnode) stop() {
	log.Infof("shutting down fullnode")
	n.peerGroup.Stop()
	if err := n.db.Close(); err != nil {
		log.Errorf("closing block database: %v", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.InitLogRotator(filepath.Join(cfg.LogDir, "fullnode.log"))
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	node, err := newFullnode(cfg)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	node.start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	node.stop()
}

// handleReceivedBlock adds a block announced by a peer to the chain and,
// once accepted, relays it on to the rest of the connected peers. A
// rejected block is not fatal to the node, only logged: the peer that
// sent it stays connected.
func handleReceivedBlock(chain *blockchain.BlockChain, pg *peergroup.PeerGroup, p *peer.Peer, msg *wire.MsgBlock) {
	block := blockutil.NewBlock(msg)
	connected, err := chain.Add(block)
	if err != nil {
		log.Debugf("rejecting block from %s: %v", p, err)
		return
	}
	if connected {
		pg.RelayBlock(msg, p)
	}
}
