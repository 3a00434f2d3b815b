package decode

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// flatePool manages reusable raw DEFLATE readers.
type flatePool struct {
	pool sync.Pool
}

// Get returns a DEFLATE reader configured to read from r.
// The caller must call the returned release function when done.
func (p *flatePool) Get(r io.Reader) (io.ReadCloser, func()) {
	if value := p.pool.Get(); value != nil {
		if fr, ok := value.(io.ReadCloser); ok {
			if resetter, ok := fr.(flate.Resetter); ok && resetter.Reset(r, nil) == nil {
				return fr, func() { p.pool.Put(fr) }
			}
		}
	}
	fr := flate.NewReader(r)
	return fr, func() { p.pool.Put(fr) }
}

// zstdPool manages reusable zstd decoders to reduce allocation overhead.
type zstdPool struct {
	pool             sync.Pool
	maxDecoderMemory uint64
}

func newZstdPool(maxMemory uint64) *zstdPool {
	p := &zstdPool{maxDecoderMemory: maxMemory}
	p.pool.New = func() any {
		dec, err := p.newDecoder(nil)
		if err != nil {
			return nil
		}
		return dec
	}
	return p
}

// Get returns a decoder configured to read from r.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *zstdPool) Get(r io.Reader) (*zstd.Decoder, func(), error) {
	value := p.pool.Get()
	dec, ok := value.(*zstd.Decoder)
	if !ok {
		// Pool's New function failed, try directly
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		dec.Close()
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

// newDecoder creates a zstd decoder with the configured memory limit.
func (p *zstdPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(false),
	}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}
