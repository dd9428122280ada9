// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/peer"
	"github.com/btcfullnode/node/wire"
)

// mockRemotePeer starts a listener on an ephemeral loopback port and hands
// the first accepted connection to an inbound peer using cfg. It does not
// return until the listener is active.
func mockRemotePeer(t *testing.T, cfg *peer.Config) (addr string, err error) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		p := peer.NewInboundPeer(cfg)
		if err := p.AssociateConnection(conn); err != nil {
			fmt.Printf("AssociateConnection: error %+v\n", err)
		}
	}()
	return listener.Addr().String(), nil
}

// TestOutboundPeerHandshake demonstrates the basic process for initializing
// an outbound peer and completing the version/verack handshake against a
// freshly accepted inbound peer.
func TestOutboundPeerHandshake(t *testing.T) {
	regtest := params.RegressionNetParams

	inboundCfg := &peer.Config{
		UserAgentName:    "node",
		UserAgentVersion: "1.0.0",
		NetParams:        &regtest,
	}
	addr, err := mockRemotePeer(t, inboundCfg)
	if err != nil {
		t.Fatalf("mockRemotePeer: %v", err)
	}

	versionReceived := make(chan struct{})
	verack := make(chan struct{})
	outboundCfg := &peer.Config{
		UserAgentName:    "node",
		UserAgentVersion: "1.0.0",
		NetParams:        &regtest,
		Services:         0,
		Listeners: peer.MessageListeners{
			OnVersion: func(p *peer.Peer, msg *wire.MsgVersion) {
				close(versionReceived)
			},
			OnVerAck: func(p *peer.Peer, msg *wire.MsgVerAck) {
				close(verack)
			},
		},
	}
	p, err := peer.NewOutboundPeer(outboundCfg, addr)
	if err != nil {
		t.Fatalf("NewOutboundPeer: %v", err)
	}

	conn, err := net.Dial("tcp", p.Addr())
	if err != nil {
		t.Fatalf("net.Dial: %v", err)
	}
	if err := p.AssociateConnection(conn); err != nil {
		t.Fatalf("AssociateConnection: %v", err)
	}

	select {
	case <-versionReceived:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for version message")
	}

	select {
	case <-verack:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for verack")
	}

	if p.State() != peer.StateConnected {
		t.Fatalf("peer state = %s, want connected", p.State())
	}

	p.Disconnect()
	p.WaitForDisconnect()
}
