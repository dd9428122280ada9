package txscript_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/txscript"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

func buildSpendingTx(prevScript []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.ZeroHash, 0), nil))
	tx.AddTxOut(wire.NewTxOut(4900000000, []byte{0x51}))
	_ = prevScript
	return tx
}

func payToPubKeyHashScript(pubKeyHash []byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, pubKeyHash...)
	script = append(script, 0x88, 0xac)
	return script
}

func signInput(t *testing.T, priv *btcec.PrivateKey, tx *wire.MsgTx, inputIndex int, subscript []byte, hashType uint32) []byte {
	t.Helper()
	sigHash, err := blockutil.HashForSignature(tx, inputIndex, subscript, hashType)
	if err != nil {
		t.Fatalf("HashForSignature: unexpected error: %v", err)
	}
	sig := ecdsa.Sign(priv, sigHash[:])
	der := sig.Serialize()
	return append(der, byte(hashType))
}

func pushData(data []byte) []byte {
	if len(data) == 0 {
		return []byte{0x00}
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, byte(len(data)))
	out = append(out, data...)
	return out
}

func TestVerifyPayToPubKeyHash(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: unexpected error: %v", err)
	}
	pubKeyBytes := priv.PubKey().SerializeCompressed()
	pubKeyHash := txscript.Hash160(pubKeyBytes)
	pkScript := payToPubKeyHashScript(pubKeyHash)

	tx := buildSpendingTx(pkScript)
	sigWithHashType := signInput(t, priv, tx, 0, pkScript, blockutil.SigHashAll)

	var scriptSig []byte
	scriptSig = append(scriptSig, pushData(sigWithHashType)...)
	scriptSig = append(scriptSig, pushData(pubKeyBytes)...)

	if err := txscript.Verify(scriptSig, pkScript, tx, 0); err != nil {
		t.Fatalf("Verify: unexpected error: %v", err)
	}
}

func TestVerifyPayToPubKeyHashWrongKey(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	other, _ := btcec.NewPrivateKey()

	pubKeyHash := txscript.Hash160(priv.PubKey().SerializeCompressed())
	pkScript := payToPubKeyHashScript(pubKeyHash)

	tx := buildSpendingTx(pkScript)
	sigWithHashType := signInput(t, other, tx, 0, pkScript, blockutil.SigHashAll)

	var scriptSig []byte
	scriptSig = append(scriptSig, pushData(sigWithHashType)...)
	scriptSig = append(scriptSig, pushData(other.PubKey().SerializeCompressed())...)

	if err := txscript.Verify(scriptSig, pkScript, tx, 0); err == nil {
		t.Fatalf("Verify: expected error for pubkey not matching pkScript hash")
	}
}

func TestVerifyUnsupportedScript(t *testing.T) {
	tx := buildSpendingTx(nil)
	weirdScript := []byte{0x6a, 0x04, 1, 2, 3, 4} // OP_RETURN <data>

	if err := txscript.Verify(nil, weirdScript, tx, 0); err != txscript.ErrUnsupportedScript {
		t.Fatalf("Verify: expected ErrUnsupportedScript, got %v", err)
	}
}
