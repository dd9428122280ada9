package txscript

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"

	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/wire"
)

// ErrUnsupportedScript is returned when scriptPubKey is not one of the
// recognized standard templates (pay-to-pubkey-hash, pay-to-pubkey).
var ErrUnsupportedScript = errors.New("txscript: unsupported script template")

// ErrInvalidSignature is returned when the signature embedded in
// scriptSig fails to verify against scriptPubKey's public key.
var ErrInvalidSignature = errors.New("txscript: signature verification failed")

// Hash160 computes RIPEMD160(SHA256(data)), the digest used to commit to
// a public key in a pay-to-pubkey-hash output.
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	ripemd := ripemd160.New()
	ripemd.Write(sum[:])
	return ripemd.Sum(nil)
}

// Verify is the script oracle spec.md §1 and §4.4.1 call: it reports
// whether scriptSig satisfies scriptPubKey for the given transaction
// input. Only the standard pay-to-pubkey-hash and pay-to-pubkey output
// templates are recognized; any other scriptPubKey is rejected as
// unsupported rather than silently accepted.
func Verify(scriptSig, scriptPubKey []byte, tx *wire.MsgTx, inputIndex int) error {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return errors.Errorf("txscript: input index %d out of range", inputIndex)
	}

	class, payload := classifyPkScript(scriptPubKey)
	if class == classUnsupported {
		return ErrUnsupportedScript
	}

	pushes, err := parsePushes(scriptSig)
	if err != nil {
		return err
	}

	switch class {
	case classPubKeyHash:
		if len(pushes) != 2 {
			return ErrMalformedScript
		}
		sigBytes, pubKeyBytes := pushes[0], pushes[1]
		if got := Hash160(pubKeyBytes); !bytesEqual(got, payload) {
			return errors.New("txscript: public key does not match pubkey hash")
		}
		return verifySignature(sigBytes, pubKeyBytes, tx, inputIndex, scriptPubKey)

	case classPubKey:
		if len(pushes) != 1 {
			return ErrMalformedScript
		}
		return verifySignature(pushes[0], payload, tx, inputIndex, scriptPubKey)
	}

	return ErrUnsupportedScript
}

// verifySignature checks a DER-encoded, sighash-type-suffixed ECDSA
// signature against pubKeyBytes over the transaction's legacy sighash
// digest for this input, with scriptPubKey (OP_CODESEPARATORs already
// stripped by the caller's blockutil.HashForSignature) as the subscript.
func verifySignature(sigWithHashType, pubKeyBytes []byte, tx *wire.MsgTx, inputIndex int, subscript []byte) error {
	if len(sigWithHashType) == 0 {
		return ErrInvalidSignature
	}
	hashType := uint32(sigWithHashType[len(sigWithHashType)-1])
	derSig := sigWithHashType[:len(sigWithHashType)-1]

	sigHash, err := blockutil.HashForSignature(tx, inputIndex, subscript, hashType)
	if err != nil {
		return errors.Wrap(err, "computing signature hash")
	}

	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return errors.Wrap(err, "parsing signature")
	}

	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return errors.Wrap(err, "parsing public key")
	}

	if !sig.Verify(sigHash[:], pubKey) {
		return ErrInvalidSignature
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
