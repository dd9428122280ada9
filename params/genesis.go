// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package params

import (
	"time"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// genesisCoinbaseTx is the coinbase transaction for the genesis block of
// every default network.
var genesisCoinbaseTx = wire.MsgTx{
	Version: 1,
	TxIn: []*wire.TxIn{
		{
			PreviousOutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{},
				Index: wire.MaxPrevOutIndex,
			},
			SignatureScript: []byte{
				0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04, 0x45,
				0x54, 0x68, 0x65, 0x20, 0x54, 0x69, 0x6d, 0x65,
				0x73,
			},
			Sequence: wire.MaxTxInSequenceNum,
		},
	},
	TxOut: []*wire.TxOut{
		{
			Value: 0x12a05f200,
			PkScript: []byte{
				0x51,
			},
		},
	},
	LockTime: 0,
}

// genesisHash is the hash of the first block in the chain for the main
// network (genesis block).
var genesisHash = chainhash.Hash([chainhash.HashSize]byte{
	0x60, 0x7f, 0xdb, 0x42, 0x02, 0xe9, 0x9c, 0x5f,
	0x2c, 0x22, 0x3e, 0x00, 0x56, 0xbf, 0xb7, 0x8a,
	0x6f, 0x84, 0x2f, 0xfe, 0xd6, 0xcc, 0x34, 0xb8,
	0xda, 0xfb, 0xfb, 0x08, 0xf5, 0x07, 0x4c, 0x91,
})

// genesisMerkleRoot is the hash of the single coinbase transaction in the
// genesis block for the main network.
var genesisMerkleRoot = chainhash.Hash([chainhash.HashSize]byte{
	0x21, 0xd0, 0x31, 0x1c, 0xb2, 0x6c, 0x6b, 0x04,
	0xe6, 0x5c, 0xf6, 0x10, 0x16, 0x59, 0x60, 0x3f,
	0x13, 0x10, 0x3c, 0xcb, 0x31, 0x36, 0xcf, 0xe2,
	0x78, 0x63, 0xf7, 0x48, 0x0c, 0x2a, 0x74, 0xb8,
})

// genesisBlock defines the genesis block of the main network.
var genesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(0x5c3cafec, 0),
		Bits:       0x1d00ffff,
		Nonce:      0x7c2bac1d,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// regTestGenesisBlock defines the genesis block of the regression test
// network, identical in content to the main network's but validated under
// regtest parameters (trivial PoW limit).
var regTestGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(1296688602, 0),
		Bits:       0x207fffff,
		Nonce:      2,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// testNet3GenesisBlock defines the genesis block of the test network
// (version 3).
var testNet3GenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(1296688602, 0),
		Bits:       0x1d00ffff,
		Nonce:      414098458,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// simNetGenesisBlock defines the genesis block of the simulation test
// network.
var simNetGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  time.Unix(1401292357, 0),
		Bits:       0x207fffff,
		Nonce:      2,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}
