package decode

import (
	"fmt"

	"github.com/meigma/rangefetch/internal/fragtype"
)

// Codec identifies the compression method of a raw fragment stream.
type Codec uint8

const (
	// CodecDeflate is a raw DEFLATE stream (zip method 8) with a 15-bit window
	// and no zlib or gzip framing.
	CodecDeflate Codec = iota

	// CodecZstd is a zstd frame (zip method 93).
	CodecZstd

	// CodecStore is uncompressed data (zip method 0).
	CodecStore
)

// String returns the human-readable name of the codec.
func (c Codec) String() string {
	switch c {
	case CodecDeflate:
		return "deflate"
	case CodecZstd:
		return "zstd"
	case CodecStore:
		return "store"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses a codec from its string representation.
// The empty string selects CodecDeflate.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "deflate":
		return CodecDeflate, nil
	case "zstd":
		return CodecZstd, nil
	case "store", "none":
		return CodecStore, nil
	default:
		return 0, fmt.Errorf("%w: unknown codec %q", fragtype.ErrConfig, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Codec) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Codec) UnmarshalText(text []byte) error {
	parsed, err := ParseCodec(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
