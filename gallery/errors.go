package gallery

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a request the caller can fix (bad URL, empty query,
// unknown media type).
var ErrInvalidInput = errors.New("gallery: invalid input")

// ErrNotFound marks a lookup for a gallery that is not cached.
var ErrNotFound = errors.New("gallery: not found")

// PersistenceError reports a cache write that kept failing after retries.
// The extraction result it interrupted is lost, not partially visible.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("gallery: persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
