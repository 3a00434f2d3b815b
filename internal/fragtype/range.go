// Package fragtype defines the fragment data model shared by the transports,
// the decoder, and the orchestrator.
package fragtype

import "fmt"

// Range is a half-open byte interval [Start, Stop) inside an archive.
type Range struct {
	// Start is the first byte offset included in the range.
	Start int64

	// Stop is the first byte offset past the end of the range.
	Stop int64
}

// NewRange returns the range [start, stop).
// It fails with ErrConfig when start is negative or stop <= start.
func NewRange(start, stop int64) (Range, error) {
	if start < 0 {
		return Range{}, fmt.Errorf("%w: range start %d is negative", ErrConfig, start)
	}
	if stop <= start {
		return Range{}, fmt.Errorf("%w: range stop %d must be greater than start %d", ErrConfig, stop, start)
	}
	return Range{Start: start, Stop: stop}, nil
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int64 {
	return r.Stop - r.Start
}

// Last returns the inclusive end offset used by range-request protocols.
func (r Range) Last() int64 {
	return r.Stop - 1
}

// Header returns the HTTP Range header value for r.
func (r Range) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.Last())
}

// String returns r in interval notation.
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.Stop)
}
