package rangefetch

import "github.com/meigma/rangefetch/internal/fragtype"

// Errors re-exported from the fragment types.
var (
	// ErrConfig is returned for malformed offset tables, empty fragment sets,
	// invalid ranges, and invalid configuration.
	ErrConfig = fragtype.ErrConfig

	// ErrTransport is returned when a range request fails.
	ErrTransport = fragtype.ErrTransport

	// ErrDecode is returned when fetched bytes cannot be decoded.
	ErrDecode = fragtype.ErrDecode
)

// FragmentError reports which fragment an extraction failed on.
type FragmentError = fragtype.FragmentError
