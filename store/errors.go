package store

import "fmt"

// StoreError wraps an unexpected I/O or batch-commit failure from the
// underlying database.Database. Unlike ErrNotFound (an expected, normal
// outcome of a lookup), a StoreError is fatal unless the caller
// explicitly retries (spec.md §7).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
