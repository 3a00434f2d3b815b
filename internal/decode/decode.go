// Package decode decompresses raw, headerless fragment streams.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/rangefetch/internal/fragtype"
	"github.com/meigma/rangefetch/internal/sizing"
)

const (
	// DefaultMaxSize is the default cap on the decoded size of one fragment.
	DefaultMaxSize = 64 << 20 // 64 MiB

	// DefaultMaxDecoderMemory is the default zstd decoder memory limit.
	DefaultMaxDecoderMemory = 256 << 20 // 256 MiB
)

// Decoder decompresses raw streams of a single codec.
//
// A Decoder is safe for concurrent use; readers are pooled per codec.
// Decode is deterministic: identical input yields identical output.
type Decoder struct {
	codec            Codec
	maxSize          uint64
	maxDecoderMemory uint64
	flate            flatePool
	zstd             *zstdPool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxSize caps the decoded size of a single stream.
// Set limit to 0 to disable the limit.
func WithMaxSize(limit uint64) Option {
	return func(d *Decoder) {
		d.maxSize = limit
	}
}

// WithMaxDecoderMemory limits the memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(d *Decoder) {
		d.maxDecoderMemory = limit
	}
}

// New creates a Decoder for codec.
func New(codec Codec, opts ...Option) (*Decoder, error) {
	switch codec {
	case CodecDeflate, CodecZstd, CodecStore:
	default:
		return nil, fmt.Errorf("%w: unsupported codec %s", fragtype.ErrConfig, codec)
	}
	d := &Decoder{
		codec:            codec,
		maxSize:          DefaultMaxSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(d)
	}
	if codec == CodecZstd {
		d.zstd = newZstdPool(d.maxDecoderMemory)
	}
	return d, nil
}

// Codec returns the codec the decoder was built for.
func (d *Decoder) Codec() Codec {
	return d.codec
}

// Decode decompresses one raw stream.
//
// It returns an error wrapping fragtype.ErrDecode when data is not a
// complete stream of the decoder's codec or when the decoded size exceeds
// the configured limit. Bytes following the end of a DEFLATE stream are
// ignored.
func (d *Decoder) Decode(data []byte) ([]byte, error) {
	switch d.codec {
	case CodecStore:
		if d.maxSize != 0 && uint64(len(data)) > d.maxSize {
			return nil, d.overflow()
		}
		return bytes.Clone(data), nil
	case CodecDeflate:
		fr, release := d.flate.Get(bytes.NewReader(data))
		defer release()
		return d.readAll(fr)
	case CodecZstd:
		dec, release, err := d.zstd.Get(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fragtype.ErrDecode, err)
		}
		defer release()
		return d.readAll(dec)
	default:
		return nil, fmt.Errorf("%w: unsupported codec %s", fragtype.ErrDecode, d.codec)
	}
}

func (d *Decoder) readAll(r io.Reader) ([]byte, error) {
	errOverflow := d.overflow()
	out, err := sizing.ReadAllWithLimit(r, d.maxSize, errOverflow)
	if err != nil {
		if errors.Is(err, errOverflow) {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s stream truncated", fragtype.ErrDecode, d.codec)
		}
		return nil, fmt.Errorf("%w: %s: %v", fragtype.ErrDecode, d.codec, err)
	}
	return out, nil
}

func (d *Decoder) overflow() error {
	return fmt.Errorf("%w: decoded size exceeds %d bytes", fragtype.ErrDecode, d.maxSize)
}
