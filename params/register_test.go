package params_test

import (
	"testing"

	"github.com/btcfullnode/node/params"
)

func TestRegister(t *testing.T) {
	mockNetParams := params.Params{
		Name: "mocknet",
		Net:  1<<32 - 1,
	}

	if err := params.Register(&mockNetParams); err != nil {
		t.Fatalf("Register: unexpected error registering mocknet: %v", err)
	}

	if err := params.Register(&mockNetParams); err != params.ErrDuplicateNet {
		t.Fatalf("Register: expected ErrDuplicateNet on re-registration, got %v", err)
	}

	if err := params.Register(&params.MainNetParams); err != params.ErrDuplicateNet {
		t.Fatalf("Register: expected ErrDuplicateNet re-registering MainNetParams, got %v", err)
	}

	got := params.Lookup(mockNetParams.Net)
	if got == nil || got.Name != "mocknet" {
		t.Fatalf("Lookup: expected to find mocknet, got %v", got)
	}

	if params.Lookup(wireUnregisteredNet) != nil {
		t.Fatalf("Lookup: expected nil for an unregistered network magic")
	}
}

const wireUnregisteredNet = 0xdeadbeef
