// Package txscript implements the script verification oracle spec.md §1
// describes as an external collaborator: verify(scriptSig, scriptPubKey,
// tx, inputIndex) -> ok | error. It supports the standard output
// templates a consensus validator actually needs to check against real
// signatures: pay-to-pubkey-hash and pay-to-pubkey.
package txscript

import (
	"github.com/pkg/errors"
)

// Standard opcodes used by the script templates this package recognizes.
const (
	opData1    = 0x01
	opData75   = 0x4b
	opPushData1 = 0x4c
	opPushData2 = 0x4d
	opPushData4 = 0x4e
	opDup      = 0x76
	opEqual    = 0x87
	opEqualVerify = 0x88
	opHash160  = 0xa9
	opCheckSig = 0xac
)

// hashSize is the length of a HASH160 digest (RIPEMD160(SHA256(x))).
const hashSize = 20

// ErrMalformedScript indicates a script could not be parsed into a
// sequence of data pushes and opcodes.
var ErrMalformedScript = errors.New("txscript: malformed script")

// parsePushes decodes script as a sequence of plain data pushes, failing
// if it contains anything but pushes (every supported scriptSig is
// push-only, per BIP-62's even-then-already-conventional rule).
func parsePushes(script []byte) ([][]byte, error) {
	var pushes [][]byte
	i := 0
	for i < len(script) {
		op := script[i]
		switch {
		case op >= opData1 && op <= opData75:
			end := i + 1 + int(op)
			if end > len(script) {
				return nil, ErrMalformedScript
			}
			pushes = append(pushes, script[i+1:end])
			i = end
		case op == 0x00:
			pushes = append(pushes, nil)
			i++
		case op == opPushData1:
			if i+2 > len(script) {
				return nil, ErrMalformedScript
			}
			n := int(script[i+1])
			end := i + 2 + n
			if end > len(script) {
				return nil, ErrMalformedScript
			}
			pushes = append(pushes, script[i+2:end])
			i = end
		case op == opPushData2:
			if i+3 > len(script) {
				return nil, ErrMalformedScript
			}
			n := int(script[i+1]) | int(script[i+2])<<8
			end := i + 3 + n
			if end > len(script) {
				return nil, ErrMalformedScript
			}
			pushes = append(pushes, script[i+3:end])
			i = end
		case op == opPushData4:
			if i+5 > len(script) {
				return nil, ErrMalformedScript
			}
			n := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			end := i + 5 + n
			if end > len(script) {
				return nil, ErrMalformedScript
			}
			pushes = append(pushes, script[i+5:end])
			i = end
		default:
			return nil, errors.Errorf("txscript: opcode 0x%02x is not a push", op)
		}
	}
	return pushes, nil
}

// scriptClass identifies a recognized scriptPubKey template.
type scriptClass int

const (
	classUnsupported scriptClass = iota
	classPubKeyHash
	classPubKey
)

// classifyPkScript recognizes the standard pay-to-pubkey-hash and
// pay-to-pubkey templates and extracts the relevant payload (the pubkey
// hash, or the pubkey itself).
func classifyPkScript(pkScript []byte) (scriptClass, []byte) {
	if len(pkScript) == 25 &&
		pkScript[0] == opDup && pkScript[1] == opHash160 &&
		pkScript[2] == hashSize && pkScript[23] == opEqualVerify &&
		pkScript[24] == opCheckSig {
		return classPubKeyHash, pkScript[3:23]
	}

	if len(pkScript) > 0 && pkScript[len(pkScript)-1] == opCheckSig {
		pushes, err := parsePushes(pkScript[:len(pkScript)-1])
		if err == nil && len(pushes) == 1 {
			pubKey := pushes[0]
			if len(pubKey) == 33 || len(pubKey) == 65 {
				return classPubKey, pubKey
			}
		}
	}

	return classUnsupported, nil
}
