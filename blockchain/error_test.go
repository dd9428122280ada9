package blockchain

import (
	"fmt"
	"testing"
)

func TestErrorCodeStringer(t *testing.T) {
	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrBadPoW, "ErrBadPoW"},
		{ErrBadMerkle, "ErrBadMerkle"},
		{ErrBadTimestamp, "ErrBadTimestamp"},
		{ErrBadDifficulty, "ErrBadDifficulty"},
		{ErrCheckpointMismatch, "ErrCheckpointMismatch"},
		{ErrDoubleSpend, "ErrDoubleSpend"},
		{ErrInvalidScript, "ErrInvalidScript"},
		{ErrCoinbaseImmature, "ErrCoinbaseImmature"},
		{ErrValueOverflow, "ErrValueOverflow"},
		{ErrTooManySigOps, "ErrTooManySigOps"},
		{ErrDuplicateTransaction, "ErrDuplicateTransaction"},
		{ErrStructural, "ErrStructural"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}

	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d: got %s, want %s", i, result, test.want)
		}
	}
}

func TestVerificationError(t *testing.T) {
	tests := []struct {
		in   VerificationError
		want string
	}{
		{VerificationError{Description: "duplicate block"}, "duplicate block"},
		{VerificationError{ErrorCode: ErrBadPoW, Description: "hash above target"}, "hash above target"},
	}

	for i, test := range tests {
		result := test.in.Error()
		if result != test.want {
			t.Errorf("Error #%d: got %s, want %s", i, result, test.want)
		}
	}
}

func TestAssertError(t *testing.T) {
	message := "abc 123"
	err := AssertError(message)
	want := fmt.Sprintf("assertion failed: %s", message)
	if err.Error() != want {
		t.Errorf("AssertError: got %s, want %s", err.Error(), want)
	}
}
