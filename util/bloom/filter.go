// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom implements the peer-side bloom filter matching used to
// answer filterload/filteradd/filterclear and to build merkleblock replies.
package bloom

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// MaxFilterLoad is the maximum number of bytes a filter may hold. Larger
// filterload messages are rejected as protocol errors.
const MaxFilterLoad = 36000

// MaxHashFuncs is the maximum number of hash functions a filter may use.
const MaxHashFuncs = 50

// Filter defines a bloom filter that loads from and serializes to the
// filterload message format and can be updated concurrently as filteradd
// messages arrive. Its hash functions are keyed FNV-1a rather than BIP37's
// MurmurHash3, so its bit pattern for a given element differs from a BIP37
// filter's.
type Filter struct {
	mtx         sync.Mutex
	filter      []byte
	hashFuncs   uint32
	tweak       uint32
	nElements   int
	updateFlags wire.BloomUpdateType
}

// NewFilter creates a new bloom filter sized for elements entries with the
// given target false positive rate fp (0 < fp < 1) and tweak. updateFlags
// controls which matched outputs MatchTxAndUpdate folds back into the
// filter (BIP37's filterload "nFlags").
func NewFilter(elements uint32, tweak uint32, fp float64, updateFlags wire.BloomUpdateType) *Filter {
	if elements == 0 {
		elements = 1
	}
	dataLen, hashFuncs := idealFilterParams(elements, fp)
	return &Filter{
		filter:      make([]byte, dataLen),
		hashFuncs:   hashFuncs,
		tweak:       tweak,
		updateFlags: updateFlags,
	}
}

// LoadFilter reconstructs a filter received on the wire. It returns an error
// if the payload or hash function count exceed the protocol maxima.
func LoadFilter(data []byte, hashFuncs uint32, tweak uint32, updateFlags wire.BloomUpdateType) (*Filter, error) {
	if len(data) > MaxFilterLoad {
		return nil, errTooLarge("filter", len(data), MaxFilterLoad)
	}
	if hashFuncs > MaxHashFuncs {
		return nil, errTooLarge("hashFuncs", int(hashFuncs), MaxHashFuncs)
	}
	filterData := make([]byte, len(data))
	copy(filterData, data)
	return &Filter{filter: filterData, hashFuncs: hashFuncs, tweak: tweak, updateFlags: updateFlags}, nil
}

// LoadFilterFromMsg is a convenience wrapper around LoadFilter for a
// received filterload message.
func LoadFilterFromMsg(msg *wire.MsgFilterLoad) (*Filter, error) {
	return LoadFilter(msg.Filter, msg.HashFuncs, msg.Tweak, msg.Flags)
}

func idealFilterParams(elements uint32, fp float64) (dataLen int, hashFuncs uint32) {
	const ln2Squared = 0.4804530139182014
	const ln2 = 0.6931471805599453

	bits := -1.0 * float64(elements) * logFP(fp) / ln2Squared
	dataLen = int(bits) / 8
	if dataLen < 1 {
		dataLen = 1
	}
	if dataLen > MaxFilterLoad {
		dataLen = MaxFilterLoad
	}

	funcs := float64(dataLen*8) / float64(elements) * ln2
	hashFuncs = uint32(funcs)
	if hashFuncs < 1 {
		hashFuncs = 1
	}
	if hashFuncs > MaxHashFuncs {
		hashFuncs = MaxHashFuncs
	}
	return dataLen, hashFuncs
}

func logFP(fp float64) float64 {
	return math.Log(fp)
}

func errTooLarge(field string, got, max int) error {
	return fmt.Errorf("%s is larger than the max allowed size [got %d, max %d]", field, got, max)
}

func (f *Filter) hash(n uint32, data []byte) uint32 {
	h := fnv.New32a()
	var seed [8]byte
	seed[0] = byte(n)
	seed[1] = byte(n >> 8)
	seed[2] = byte(n >> 16)
	seed[3] = byte(n >> 24)
	seed[4] = byte(f.tweak)
	seed[5] = byte(f.tweak >> 8)
	seed[6] = byte(f.tweak >> 16)
	seed[7] = byte(f.tweak >> 24)
	h.Write(seed[:])
	h.Write(data)
	sum := h.Sum32()
	if len(f.filter) == 0 {
		return 0
	}
	return sum % (uint32(len(f.filter)) * 8)
}

// matches reports whether data may already be present in the filter.
func (f *Filter) matchesLocked(data []byte) bool {
	if len(f.filter) == 0 {
		return false
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		if f.filter[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Matches returns true if data is a member of the set represented by the
// filter.
func (f *Filter) Matches(data []byte) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.matchesLocked(data)
}

// MatchesOutPoint returns true if the given outpoint is a member of the set
// represented by the filter.
func (f *Filter) MatchesOutPoint(hash *chainhash.Hash, index uint32) bool {
	return f.Matches(outPointBytes(hash, index))
}

// outPointBytes serializes an outpoint the same way BIP37 does for
// filterload/filteradd matching: the hash followed by the little-endian
// output index.
func outPointBytes(hash *chainhash.Hash, index uint32) []byte {
	data := make([]byte, chainhash.HashSize+4)
	copy(data, hash[:])
	data[chainhash.HashSize] = byte(index)
	data[chainhash.HashSize+1] = byte(index >> 8)
	data[chainhash.HashSize+2] = byte(index >> 16)
	data[chainhash.HashSize+3] = byte(index >> 24)
	return data
}

// Add inserts data into the filter. This is used both when the filter is
// first constructed and in response to a filteradd message.
func (f *Filter) Add(data []byte) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.filter) == 0 {
		return
	}
	for i := uint32(0); i < f.hashFuncs; i++ {
		idx := f.hash(i, data)
		f.filter[idx/8] |= 1 << (idx % 8)
	}
}

// Reload replaces the filter contents in place, implementing filterclear
// followed by a fresh filterload without requiring peer reconnection.
func (f *Filter) Reload(data []byte, hashFuncs uint32, tweak uint32) error {
	if len(data) > MaxFilterLoad {
		return errTooLarge("filter", len(data), MaxFilterLoad)
	}
	if hashFuncs > MaxHashFuncs {
		return errTooLarge("hashFuncs", int(hashFuncs), MaxHashFuncs)
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.filter = append([]byte(nil), data...)
	f.hashFuncs = hashFuncs
	f.tweak = tweak
	return nil
}

// Clear empties the filter so that nothing matches it, mirroring the effect
// of a filterclear message.
func (f *Filter) Clear() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for i := range f.filter {
		f.filter[i] = 0
	}
}

// Bytes returns the raw filter payload suitable for serializing in a
// filterload message.
func (f *Filter) Bytes() []byte {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]byte(nil), f.filter...)
}

// HashFuncs returns the number of hash functions configured for the filter.
func (f *Filter) HashFuncs() uint32 {
	return f.hashFuncs
}

// Tweak returns the tweak nonce mixed into every hash function.
func (f *Filter) Tweak() uint32 {
	return f.tweak
}

// UpdateFlags returns the BIP37 update behavior (BloomUpdateNone/All/
// P2PubkeyOnly) this filter was loaded with.
func (f *Filter) UpdateFlags() wire.BloomUpdateType {
	return f.updateFlags
}

// MatchTxAndUpdate reports whether tx is relevant to the filter: its hash,
// any of its outputs' pushed data, or (for a non-coinbase transaction) any
// of its inputs' previous outpoints or signature script pushed data is a
// member of the set. A matching output is folded back into the filter per
// UpdateFlags, so that the transaction spending it is later matched too
// (BIP37's filterload nFlags).
func (f *Filter) MatchTxAndUpdate(tx *wire.MsgTx) bool {
	matched := false

	txHash := tx.TxHash()
	if f.Matches(txHash[:]) {
		matched = true
	}

	for i, txOut := range tx.TxOut {
		for _, data := range extractPushedData(txOut.PkScript) {
			if !f.Matches(data) {
				continue
			}
			matched = true
			f.maybeAddOutPoint(&txHash, uint32(i), txOut.PkScript)
			break
		}
	}

	if !tx.IsCoinBase() {
		for _, txIn := range tx.TxIn {
			if f.MatchesOutPoint(&txIn.PreviousOutPoint.Hash, txIn.PreviousOutPoint.Index) {
				matched = true
			}
			for _, data := range extractPushedData(txIn.SignatureScript) {
				if f.Matches(data) {
					matched = true
				}
			}
		}
	}

	return matched
}

// maybeAddOutPoint folds (txHash, index) into the filter if UpdateFlags
// calls for it: BloomUpdateAll always does, BloomUpdateP2PubkeyOnly only
// when pkScript is a standard pay-to-pubkey-hash or pay-to-pubkey output.
func (f *Filter) maybeAddOutPoint(txHash *chainhash.Hash, index uint32, pkScript []byte) {
	switch f.updateFlags {
	case wire.BloomUpdateAll:
		f.Add(outPointBytes(txHash, index))
	case wire.BloomUpdateP2PubkeyOnly:
		if isPayToPubkeyOrPubkeyHash(pkScript) {
			f.Add(outPointBytes(txHash, index))
		}
	}
}

// extractPushedData scans script for data-push opcodes, skipping over any
// other opcode, and returns every pushed element in order. Unlike a script
// interpreter's strict parser, it never fails: a truncated or non-push-only
// script simply yields the pushes found before the point it could no
// longer be parsed, which is what BIP37 matching needs since scriptPubKey
// templates interleave pushes with non-push opcodes (OP_DUP, OP_CHECKSIG).
func extractPushedData(script []byte) [][]byte {
	const (
		opPushData1 = 0x4c
		opPushData2 = 0x4d
		opPushData4 = 0x4e
	)

	var pushes [][]byte
	i := 0
	for i < len(script) {
		op := script[i]
		switch {
		case op >= 0x01 && op <= 0x4b:
			end := i + 1 + int(op)
			if end > len(script) {
				return pushes
			}
			pushes = append(pushes, script[i+1:end])
			i = end
		case op == opPushData1:
			if i+2 > len(script) {
				return pushes
			}
			n := int(script[i+1])
			end := i + 2 + n
			if end > len(script) {
				return pushes
			}
			pushes = append(pushes, script[i+2:end])
			i = end
		case op == opPushData2:
			if i+3 > len(script) {
				return pushes
			}
			n := int(script[i+1]) | int(script[i+2])<<8
			end := i + 3 + n
			if end > len(script) {
				return pushes
			}
			pushes = append(pushes, script[i+3:end])
			i = end
		case op == opPushData4:
			if i+5 > len(script) {
				return pushes
			}
			n := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			end := i + 5 + n
			if end > len(script) {
				return pushes
			}
			pushes = append(pushes, script[i+5:end])
			i = end
		default:
			i++
		}
	}
	return pushes
}

// isPayToPubkeyOrPubkeyHash recognizes the standard pay-to-pubkey-hash and
// pay-to-pubkey output templates, the only ones BloomUpdateP2PubkeyOnly
// folds back into the filter.
func isPayToPubkeyOrPubkeyHash(pkScript []byte) bool {
	const (
		opDup         = 0x76
		opHash160     = 0xa9
		opEqualVerify = 0x88
		opCheckSig    = 0xac
		hashSize      = 20
	)

	if len(pkScript) == 25 &&
		pkScript[0] == opDup && pkScript[1] == opHash160 &&
		pkScript[2] == hashSize && pkScript[23] == opEqualVerify &&
		pkScript[24] == opCheckSig {
		return true
	}

	if len(pkScript) > 0 && pkScript[len(pkScript)-1] == opCheckSig {
		pushes := extractPushedData(pkScript[:len(pkScript)-1])
		if len(pushes) == 1 && (len(pushes[0]) == 33 || len(pushes[0]) == 65) {
			return true
		}
	}

	return false
}
