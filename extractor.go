package rangefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/rangefetch/internal/assemble"
	"github.com/meigma/rangefetch/internal/batch"
	"github.com/meigma/rangefetch/internal/decode"
	"github.com/meigma/rangefetch/internal/metrics"
	"github.com/meigma/rangefetch/offsets"
)

// DefaultArchiveConcurrency is the number of archives ExtractAll processes
// at once. Each archive additionally uses Config.Workers fetch workers.
const DefaultArchiveConcurrency = 2

// Extractor fetches, decodes and reassembles the fragments of remote archives.
//
// An Extractor is safe for concurrent use; its transport, decoder and pool
// are shared read-only across extractions.
type Extractor struct {
	cfg       Config
	transport Transport
	decoder   *decode.Decoder
	pool      *batch.Pool

	deps     transportDeps
	logger   *slog.Logger
	progress ProgressFunc
	metrics  *metrics.Metrics
}

// New creates an Extractor from cfg.
//
// Unless [WithTransport] is given, the transport is built from
// cfg.Strategy. The S3 strategy requests credentials once, here.
func New(ctx context.Context, cfg Config, opts ...Option) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x := &Extractor{cfg: cfg}
	for _, opt := range opts {
		if err := opt(x); err != nil {
			return nil, err
		}
	}

	dec, err := decode.New(cfg.Codec, decode.WithMaxSize(cfg.MaxFragmentSize))
	if err != nil {
		return nil, err
	}
	x.decoder = dec
	x.pool = batch.NewPool(batch.WithWorkers(cfg.Workers), batch.WithLogger(x.log()))

	if x.transport == nil {
		t, err := newTransport(ctx, cfg, x.deps)
		if err != nil {
			return nil, err
		}
		x.transport = t
	}
	return x, nil
}

// log returns the configured logger or a no-op logger if none is set.
func (x *Extractor) log() *slog.Logger {
	if x.logger != nil {
		return x.logger
	}
	return slog.New(slog.DiscardHandler)
}

// Config returns the configuration the Extractor was built with.
func (x *Extractor) Config() Config {
	return x.cfg
}

// Fetch fetches and decodes every fragment of set and returns the decoded
// bytes in declaration order, whatever order the requests complete in.
//
// The first failure is returned as a *FragmentError wrapping ErrTransport
// or ErrDecode; no partial result is returned and nothing is retried.
func (x *Extractor) Fetch(ctx context.Context, set FragmentSet) ([][]byte, error) {
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: empty fragment set", ErrConfig)
	}

	total := set.Len()
	var done atomic.Int64
	var decoded atomic.Uint64

	parts, err := x.pool.Run(ctx, total, func(ctx context.Context, i int) ([]byte, error) {
		f := set.At(i)
		out, err := x.fetchOne(ctx, f)
		if err != nil {
			return nil, err
		}
		n := done.Add(1)
		bytesDone := decoded.Add(uint64(len(out)))
		x.emit(ProgressEvent{
			Stage:          StageFetching,
			Fragment:       f.Name,
			BytesDone:      bytesDone,
			FragmentsDone:  int(n),
			FragmentsTotal: total,
		})
		return out, nil
	})
	if err != nil {
		var fe *FragmentError
		if !errors.As(err, &fe) {
			err = fmt.Errorf("fetch %s: %w", set.ArchiveID(), err)
		}
		x.log().Warn("fetch failed, discarding in-flight fragments",
			"archive", set.ArchiveID(),
			"completed", done.Load(),
			"fragments", total,
			"error", err)
		return nil, err
	}
	return parts, nil
}

// fetchOne fetches and decodes a single fragment.
func (x *Extractor) fetchOne(ctx context.Context, f Fragment) ([]byte, error) {
	if x.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.cfg.FetchTimeout)
		defer cancel()
	}

	x.log().Debug("fetch fragment", "archive", f.ArchiveID, "fragment", f.Name, "range", f.Range.String())
	start := time.Now()
	raw, err := x.transport.Fetch(ctx, f.ArchiveID, f.Range)
	if err == nil && int64(len(raw)) != f.Range.Len() {
		err = fmt.Errorf("%w: got %d bytes, want %d", ErrTransport, len(raw), f.Range.Len())
	}
	if err != nil {
		x.metrics.ObserveFailure("fetch")
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil, &FragmentError{Op: "fetch", Fragment: f, Err: err}
	}
	x.metrics.ObserveFetch(time.Since(start), len(raw))

	out, err := x.decoder.Decode(raw)
	if err != nil {
		x.metrics.ObserveFailure("decode")
		return nil, &FragmentError{Op: "decode", Fragment: f, Err: err}
	}
	x.metrics.ObserveFragment(len(out))

	x.log().Debug("fragment complete",
		"archive", f.ArchiveID,
		"fragment", f.Name,
		"compressed", len(raw),
		"decoded", len(out),
		"duration", time.Since(start))
	return out, nil
}

// Extract fetches every fragment of set and writes their concatenation to
// sink. The sink is only opened once all fragments have been decoded, so a
// failed extraction writes nothing. It returns the number of bytes written.
func (x *Extractor) Extract(ctx context.Context, set FragmentSet, sink Sink) (int64, error) {
	start := time.Now()
	n, err := x.extract(ctx, set, sink)
	x.metrics.ObserveExtraction(err)
	if err != nil {
		return 0, err
	}
	x.log().Info("extraction complete",
		"archive", set.ArchiveID(),
		"fragments", set.Len(),
		"bytes", n,
		"duration", time.Since(start))
	return n, nil
}

func (x *Extractor) extract(ctx context.Context, set FragmentSet, sink Sink) (int64, error) {
	if sink == nil {
		return 0, fmt.Errorf("%w: sink is nil", ErrConfig)
	}
	parts, err := x.Fetch(ctx, set)
	if err != nil {
		return 0, err
	}

	x.emit(ProgressEvent{Stage: StageAssembling, FragmentsDone: set.Len(), FragmentsTotal: set.Len()})
	n, err := assemble.Assemble(sink, set.ArchiveID(), parts)
	if err != nil {
		return 0, err
	}
	x.emit(ProgressEvent{Stage: StageDone, BytesDone: uint64(n), FragmentsDone: set.Len(), FragmentsTotal: set.Len()})
	return n, nil
}

// ExtractArchive loads the offset table at tablePath and extracts one archive
// into destDir as <archiveID>.xml. An empty archiveID selects the first
// archive of the table. It returns the path of the written artifact.
func (x *Extractor) ExtractArchive(ctx context.Context, tablePath, archiveID, destDir string, opts ...FileSinkOption) (string, error) {
	table, err := offsets.Load(tablePath)
	if err != nil {
		return "", err
	}
	set, err := table.FragmentSet(archiveID)
	if err != nil {
		return "", err
	}
	sink := NewFileSink(destDir, opts...)
	if _, err := x.Extract(ctx, set, sink); err != nil {
		return "", err
	}
	return sink.Path(set.ArchiveID()), nil
}

// ArchiveResult describes one archive extracted by ExtractAll.
type ArchiveResult struct {
	ArchiveID string
	Bytes     int64
}

// ExtractAll extracts every archive of table to sink, at most
// DefaultArchiveConcurrency at a time. Results are in table order.
// The sink must be safe for concurrent use; [FileSink] and [WriterSink] are.
//
// The first failure cancels the remaining archives. Artifacts already
// committed for other archives are left in place.
func (x *Extractor) ExtractAll(ctx context.Context, table *offsets.Table, sink Sink) ([]ArchiveResult, error) {
	sets, err := table.FragmentSets()
	if err != nil {
		return nil, err
	}

	results := make([]ArchiveResult, len(sets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultArchiveConcurrency)
	for i, set := range sets {
		g.Go(func() error {
			n, err := x.Extract(ctx, set, sink)
			if err != nil {
				return fmt.Errorf("extract %s: %w", set.ArchiveID(), err)
			}
			results[i] = ArchiveResult{ArchiveID: set.ArchiveID(), Bytes: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (x *Extractor) emit(ev ProgressEvent) {
	if x.progress != nil {
		x.progress(ev)
	}
}
