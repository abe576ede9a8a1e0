package core

import (
	"errors"
	"fmt"

	"github.com/vigilator/vigil/internal/encoding"
)

// Common errors
var (
	// ErrNotFound is returned when no row matches a query
	ErrNotFound = errors.New("record not found")

	// ErrDecodeFailure is returned when a matched row holds undecodable sequence bytes
	ErrDecodeFailure = errors.New("failed to decode stored record")

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrFieldType is returned when a value's type does not belong to the field
	ErrFieldType = errors.New("value type does not match field")

	// ErrInvalidK is returned when k is negative
	ErrInvalidK = errors.New("k must not be negative")

	// ErrDimensionMismatch is matched by every DimensionMismatchError
	ErrDimensionMismatch = errors.New("token ids and scores differ in length")

	// ErrCodec is matched by every codec failure
	ErrCodec = encoding.ErrMalformed
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vigil: %v", e.Err)
	}
	return fmt.Sprintf("vigil: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// DimensionMismatchError reports parallel sequences of different lengths.
type DimensionMismatchError struct {
	TokenIDs int
	Scores   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d token ids, %d scores", e.TokenIDs, e.Scores)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
