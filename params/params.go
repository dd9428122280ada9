// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package params defines the immutable NetworkParameters bundle consumed by
// the codec, block chain, and peer group: network magic, default port,
// genesis block, proof-of-work target parameters, difficulty retarget
// interval, subsidy schedule, and checkpoint list (spec.md §6).
package params

import (
	"errors"
	"math/big"
	"time"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

var bigOne = big.NewInt(1)

// mainPowLimit is the highest proof-of-work value a main network block can
// have: 2^224 - 1.
var mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

// regressionPowLimit is the highest proof-of-work value a regression-test
// network block can have: 2^255 - 1.
var regressionPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

// testNet3PowLimit is the highest proof-of-work value a test network
// (version 3) block can have: 2^224 - 1.
var testNet3PowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

// simNetPowLimit is the highest proof-of-work value a simulation test
// network block can have: 2^255 - 1.
var simNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

// Checkpoint identifies a known-good point in the block chain: at the
// checkpointed height, the block hash MUST match (spec.md §4.4 step 3).
type Checkpoint struct {
	Height uint32
	Hash   *chainhash.Hash
}

// Params defines a Bitcoin network by its consensus and discovery
// parameters, corresponding to spec.md §6's NetworkParameters bundle.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// Net is the magic bytes used to identify the network on the wire.
	Net wire.BitcoinNet

	// DefaultPort is the default peer-to-peer listen port for the
	// network.
	DefaultPort string

	// DNSSeeds lists hostnames to resolve for bootstrap peer discovery.
	DNSSeeds []string

	// GenesisBlock is the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// GenesisHash is the precomputed hash of GenesisBlock.
	GenesisHash *chainhash.Hash

	// PowLimit is the highest allowed proof-of-work target, as a
	// uint256.
	PowLimit *big.Int

	// PowLimitBits is PowLimit in compact form.
	PowLimitBits uint32

	// SpendableCoinbaseDepth is the number of confirmations required
	// before a coinbase output may be spent (spec.md §4.4.1).
	SpendableCoinbaseDepth uint32

	// SubsidyHalvingInterval is the number of blocks between subsidy
	// halvings.
	SubsidyHalvingInterval uint32

	// TargetTimePerBlock is the desired spacing between blocks.
	TargetTimePerBlock time.Duration

	// TargetTimespan is the total time a retarget interval is expected
	// to take (spec.md §6: 14 days for prodnet-style retargeting).
	TargetTimespan time.Duration

	// RetargetInterval is the number of blocks between difficulty
	// retargets (spec.md §4.4 step 3, §6: 2016).
	RetargetInterval uint32

	// Checkpoints are ordered from oldest to newest.
	Checkpoints []Checkpoint
}

// RetargetAdjustmentFactor is the maximum factor by which the difficulty
// target may grow or shrink in a single retarget (clamp to [target/4,
// target*4], spec.md §4.4 step 3).
const RetargetAdjustmentFactor = 4

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "8333",
	DNSSeeds: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr.org",
	},

	GenesisBlock: &genesisBlock,
	GenesisHash:  &genesisHash,
	PowLimit:     mainPowLimit,
	PowLimitBits: 0x1d00ffff,

	SpendableCoinbaseDepth: 100,
	SubsidyHalvingInterval: 210000,
	TargetTimePerBlock:     time.Minute * 10,
	TargetTimespan:         time.Hour * 24 * 14,
	RetargetInterval:       2016,

	Checkpoints: nil,
}

// RegressionNetParams defines the network parameters for the regression
// test network.
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         wire.RegTest,
	DefaultPort: "18444",
	DNSSeeds:    []string{},

	GenesisBlock: &regTestGenesisBlock,
	GenesisHash:  regtestGenesisHash(),
	PowLimit:     regressionPowLimit,
	PowLimitBits: 0x207fffff,

	SpendableCoinbaseDepth: 100,
	SubsidyHalvingInterval: 150,
	TargetTimePerBlock:     time.Minute * 10,
	TargetTimespan:         time.Hour * 24 * 14,
	RetargetInterval:       2016,

	Checkpoints: nil,
}

// TestNet3Params defines the network parameters for the test network
// (version 3).
var TestNet3Params = Params{
	Name:        "testnet3",
	Net:         wire.TestNet3,
	DefaultPort: "18333",
	DNSSeeds: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
	},

	GenesisBlock: &testNet3GenesisBlock,
	GenesisHash:  testnet3GenesisHash(),
	PowLimit:     testNet3PowLimit,
	PowLimitBits: 0x1d00ffff,

	SpendableCoinbaseDepth: 100,
	SubsidyHalvingInterval: 210000,
	TargetTimePerBlock:     time.Minute * 10,
	TargetTimespan:         time.Hour * 24 * 14,
	RetargetInterval:       2016,

	Checkpoints: nil,
}

// SimNetParams defines the network parameters for the simulation test
// network, used for private group testing; it deliberately carries no DNS
// seeds so nodes only ever find each other via explicitly configured
// bootstrap peers.
var SimNetParams = Params{
	Name:        "simnet",
	Net:         wire.SimNet,
	DefaultPort: "18555",
	DNSSeeds:    []string{},

	GenesisBlock: &simNetGenesisBlock,
	GenesisHash:  simnetGenesisHash(),
	PowLimit:     simNetPowLimit,
	PowLimitBits: 0x207fffff,

	SpendableCoinbaseDepth: 100,
	SubsidyHalvingInterval: 210000,
	TargetTimePerBlock:     time.Minute * 10,
	TargetTimespan:         time.Hour * 24 * 14,
	RetargetInterval:       2016,

	Checkpoints: nil,
}

func regtestGenesisHash() *chainhash.Hash {
	h := regTestGenesisBlock.BlockHash()
	return &h
}

func testnet3GenesisHash() *chainhash.Hash {
	h := testNet3GenesisBlock.BlockHash()
	return &h
}

func simnetGenesisHash() *chainhash.Hash {
	h := simNetGenesisBlock.BlockHash()
	return &h
}

// ErrDuplicateNet is returned by Register when the network's magic is
// already registered, either as one of the defaults above or by an earlier
// Register call.
var ErrDuplicateNet = errors.New("duplicate Bitcoin network")

var registeredNets = make(map[wire.BitcoinNet]*Params)

// Register adds params to the set of known networks so that library code
// can look parameters up by magic without a compile-time dependency on the
// caller's bespoke network.
func Register(p *Params) error {
	if _, ok := registeredNets[p.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[p.Net] = p
	return nil
}

// mustRegister panics on error; only safe to call from package init.
func mustRegister(p *Params) {
	if err := Register(p); err != nil {
		panic("params: failed to register default network: " + err.Error())
	}
}

// Lookup returns the registered Params for the given network magic, or nil
// if none is registered.
func Lookup(net wire.BitcoinNet) *Params {
	return registeredNets[net]
}

func init() {
	mustRegister(&MainNetParams)
	mustRegister(&TestNet3Params)
	mustRegister(&RegressionNetParams)
	mustRegister(&SimNetParams)
}
