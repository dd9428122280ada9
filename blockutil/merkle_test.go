package blockutil

import (
	"testing"

	"github.com/btcfullnode/node/util/chainhash"
)

func TestBuildMerkleTreeStoreSingle(t *testing.T) {
	leaf := chainhash.DoubleHashH([]byte("tx0"))
	root := BuildMerkleTreeStore([]*chainhash.Hash{&leaf})
	if *root != leaf {
		t.Fatalf("single-leaf merkle root should equal the leaf itself, got %s want %s", root, &leaf)
	}
}

func TestBuildMerkleTreeStoreOddDuplicatesLast(t *testing.T) {
	h0 := chainhash.DoubleHashH([]byte("tx0"))
	h1 := chainhash.DoubleHashH([]byte("tx1"))
	h2 := chainhash.DoubleHashH([]byte("tx2"))

	got := BuildMerkleTreeStore([]*chainhash.Hash{&h0, &h1, &h2})
	want := BuildMerkleTreeStore([]*chainhash.Hash{&h0, &h1, &h2, &h2})
	if *got != *want {
		t.Fatalf("odd-length level should duplicate the last hash before pairing: got %s want %s", got, want)
	}
}

func TestBuildMerkleTreeStoreEmpty(t *testing.T) {
	root := BuildMerkleTreeStore(nil)
	if *root != chainhash.ZeroHash {
		t.Fatalf("empty transaction list should yield the zero hash, got %s", root)
	}
}
