package blockchain

import "fmt"

// ErrorCode identifies the specific consensus rule a VerificationError
// violates (spec.md §7).
type ErrorCode int

const (
	ErrBadPoW ErrorCode = iota
	ErrBadMerkle
	ErrBadTimestamp
	ErrBadDifficulty
	ErrCheckpointMismatch
	ErrDoubleSpend
	ErrInvalidScript
	ErrCoinbaseImmature
	ErrValueOverflow
	ErrTooManySigOps
	ErrDuplicateTransaction
	ErrStructural
)

var errorCodeStrings = map[ErrorCode]string{
	ErrBadPoW:               "ErrBadPoW",
	ErrBadMerkle:            "ErrBadMerkle",
	ErrBadTimestamp:         "ErrBadTimestamp",
	ErrBadDifficulty:        "ErrBadDifficulty",
	ErrCheckpointMismatch:   "ErrCheckpointMismatch",
	ErrDoubleSpend:          "ErrDoubleSpend",
	ErrInvalidScript:        "ErrInvalidScript",
	ErrCoinbaseImmature:     "ErrCoinbaseImmature",
	ErrValueOverflow:        "ErrValueOverflow",
	ErrTooManySigOps:        "ErrTooManySigOps",
	ErrDuplicateTransaction: "ErrDuplicateTransaction",
	ErrStructural:           "ErrStructural",
}

// String returns the human-readable name of the error code.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// VerificationError is returned when a block or transaction is rejected
// by a consensus rule. The chain state is guaranteed untouched when this
// error is returned from Add (spec.md §7, §4.4.3).
type VerificationError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error returns the human-readable description of the rule violation.
func (e VerificationError) Error() string {
	return e.Description
}

func verificationErrorf(code ErrorCode, format string, args ...interface{}) VerificationError {
	return VerificationError{ErrorCode: code, Description: fmt.Sprintf(format, args...)}
}

// AssertError identifies an error that indicates an internal code
// consistency issue and should never occur in correct code.
type AssertError string

// Error returns the assertion failure message.
func (e AssertError) Error() string {
	return fmt.Sprintf("assertion failed: %s", string(e))
}
