package fragtype

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned for malformed offset tables, empty fragment sets,
	// and invalid ranges.
	ErrConfig = errors.New("rangefetch: invalid configuration")

	// ErrTransport is returned when a range request fails, including network
	// errors, authentication failures, non-success responses, and short bodies.
	ErrTransport = errors.New("rangefetch: transport failure")

	// ErrDecode is returned when fetched bytes are not a valid raw compressed stream.
	ErrDecode = errors.New("rangefetch: decode failure")
)

// FragmentError reports which fragment an operation failed on.
type FragmentError struct {
	// Op is the failing step ("fetch" or "decode").
	Op string

	// Fragment is the fragment being processed.
	Fragment Fragment

	// Err is the underlying error.
	Err error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("%s %s/%s %s: %v", e.Op, e.Fragment.ArchiveID, e.Fragment.Name, e.Fragment.Range, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}
