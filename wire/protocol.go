// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "fmt"

// ProtocolVersion is the latest protocol version this package supports.
const ProtocolVersion uint32 = 70001

// MultipleAddressVersion is the protocol version which added multiple
// addresses per addr message.
const MultipleAddressVersion uint32 = 209

// BIP0031Version is the protocol version which added the pong message and
// nonce field to ping.
const BIP0031Version uint32 = 60000

// BIP0037Version is the protocol version where the bloom filter messages
// (filterload, filteradd, filterclear, merkleblock) were introduced.
const BIP0037Version uint32 = 70001

// BitcoinNet represents which Bitcoin network a message belongs to.
type BitcoinNet uint32

// Network magic bytes for each supported network.
const (
	MainNet  BitcoinNet = 0xf9beb4d9
	TestNet3 BitcoinNet = 0x0b110907
	RegTest  BitcoinNet = 0xfabfb5da
	SimNet   BitcoinNet = 0x12141c16
)

var bitcoinNetStrings = map[BitcoinNet]string{
	MainNet:  "MainNet",
	TestNet3: "TestNet3",
	RegTest:  "RegTest",
	SimNet:   "SimNet",
}

func (n BitcoinNet) String() string {
	if s, ok := bitcoinNetStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown BitcoinNet (%d)", uint32(n))
}

// ServiceFlag identifies services supported by a peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << iota

	// SFNodeGetUTXO indicates a peer supports the getutxo/utxos messages.
	SFNodeGetUTXO

	// SFNodeBloom indicates a peer supports bloom filtering.
	SFNodeBloom
)

var sfStrings = map[ServiceFlag]string{
	SFNodeNetwork: "SFNodeNetwork",
	SFNodeGetUTXO: "SFNodeGetUTXO",
	SFNodeBloom:   "SFNodeBloom",
}

func (f ServiceFlag) String() string {
	if s, ok := sfStrings[f]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ServiceFlag (%d)", uint64(f))
}

// InvType represents the type of an inventory vector.
type InvType uint32

const (
	InvTypeError InvType = iota
	InvTypeTx
	InvTypeBlock
	InvTypeFilteredBlock
)

var ivStrings = map[InvType]string{
	InvTypeError:         "ERROR",
	InvTypeTx:            "MSG_TX",
	InvTypeBlock:         "MSG_BLOCK",
	InvTypeFilteredBlock: "MSG_FILTERED_BLOCK",
}

func (inv InvType) String() string {
	if s, ok := ivStrings[inv]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InvType (%d)", uint32(inv))
}

// BloomUpdateType specifies how the client wants matched filter items
// updated into the filter it has supplied.
type BloomUpdateType uint8

const (
	BloomUpdateNone BloomUpdateType = 0
	BloomUpdateAll  BloomUpdateType = 1
	BloomUpdateP2PubkeyOnly BloomUpdateType = 2
)

// RejectCode represents a numeric value by which a remote peer indicates why
// a message was rejected.
type RejectCode uint8

const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

var rejectCodeStrings = map[RejectCode]string{
	RejectMalformed:       "REJECT_MALFORMED",
	RejectInvalid:         "REJECT_INVALID",
	RejectObsolete:        "REJECT_OBSOLETE",
	RejectDuplicate:       "REJECT_DUPLICATE",
	RejectNonstandard:     "REJECT_NONSTANDARD",
	RejectDust:            "REJECT_DUST",
	RejectInsufficientFee: "REJECT_INSUFFICIENTFEE",
	RejectCheckpoint:      "REJECT_CHECKPOINT",
}

func (code RejectCode) String() string {
	if s, ok := rejectCodeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown RejectCode (%d)", uint8(code))
}
