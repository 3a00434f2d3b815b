// Package testutil provides fixtures shared by the rangefetch tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/rangefetch/internal/assemble"
	"github.com/meigma/rangefetch/internal/fragtype"
)

// DeflateRaw compresses plaintext into a raw DEFLATE stream with no header,
// the way zip stores method-8 members.
func DeflateRaw(tb testing.TB, plaintext []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		tb.Fatalf("flate.NewWriter() error = %v", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		tb.Fatalf("flate write error = %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("flate close error = %v", err)
	}
	return buf.Bytes()
}

// Zstd compresses plaintext into a single zstd frame.
func Zstd(tb testing.TB, plaintext []byte) []byte {
	tb.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		tb.Fatalf("zstd.NewWriter() error = %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(plaintext, nil)
}

// Archive is an in-memory archive built from raw compressed members.
type Archive struct {
	Data   []byte
	Ranges map[string]fragtype.Range
	Order  []string
}

// BuildArchive concatenates raw DEFLATE streams of each member, in order,
// and records the byte range of each.
func BuildArchive(tb testing.TB, names []string, plaintexts [][]byte) *Archive {
	tb.Helper()
	if len(names) != len(plaintexts) {
		tb.Fatalf("BuildArchive: %d names for %d members", len(names), len(plaintexts))
	}
	a := &Archive{Ranges: make(map[string]fragtype.Range, len(names))}
	for i, name := range names {
		start := int64(len(a.Data))
		a.Data = append(a.Data, DeflateRaw(tb, plaintexts[i])...)
		a.Ranges[name] = fragtype.Range{Start: start, Stop: int64(len(a.Data))}
		a.Order = append(a.Order, name)
	}
	return a
}

// FragmentSet returns the archive's members as a fragment set in build order.
func (a *Archive) FragmentSet(tb testing.TB, archiveID string) fragtype.FragmentSet {
	tb.Helper()
	fragments := make([]fragtype.Fragment, 0, len(a.Order))
	for _, name := range a.Order {
		r := a.Ranges[name]
		f, err := fragtype.NewFragment(name, archiveID, r.Start, r.Stop)
		if err != nil {
			tb.Fatalf("NewFragment(%s) error = %v", name, err)
		}
		fragments = append(fragments, f)
	}
	set, err := fragtype.NewFragmentSet(fragments)
	if err != nil {
		tb.Fatalf("NewFragmentSet() error = %v", err)
	}
	return set
}

// MemTransport serves range fetches from an in-memory archive.
//
// Delays and failures can be injected per range start offset. All methods
// are safe for concurrent use.
type MemTransport struct {
	Data []byte

	mu        sync.Mutex
	delays    map[int64]time.Duration
	failures  map[int64]error
	gates     map[int64]chan struct{}
	calls     []fragtype.Range
	completed []int64
}

// NewMemTransport returns a transport serving data.
func NewMemTransport(data []byte) *MemTransport {
	return &MemTransport{
		Data:     data,
		delays:   make(map[int64]time.Duration),
		failures: make(map[int64]error),
		gates:    make(map[int64]chan struct{}),
	}
}

// Delay makes fetches starting at offset sleep for d first.
func (m *MemTransport) Delay(offset int64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[offset] = d
}

// Fail makes fetches starting at offset return err.
func (m *MemTransport) Fail(offset int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[offset] = err
}

// Gate makes fetches starting at offset block until the returned channel
// is closed. The fetch ignores context cancellation, like a transport that
// cannot interrupt an in-flight request.
func (m *MemTransport) Gate(offset int64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.gates[offset] = ch
	return ch
}

// Fetch returns the bytes of r.
func (m *MemTransport) Fetch(ctx context.Context, archiveID string, r fragtype.Range) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, r)
	delay := m.delays[r.Start]
	failure := m.failures[r.Start]
	gate := m.gates[r.Start]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", fragtype.ErrTransport, ctx.Err())
		}
	}
	if failure != nil {
		return nil, failure
	}
	if r.Stop > int64(len(m.Data)) {
		return nil, fmt.Errorf("%w: range %s beyond archive %s of %d bytes", fragtype.ErrTransport, r, archiveID, len(m.Data))
	}

	m.mu.Lock()
	m.completed = append(m.completed, r.Start)
	m.mu.Unlock()
	return bytes.Clone(m.Data[r.Start:r.Stop]), nil
}

// Calls returns the ranges requested so far.
func (m *MemTransport) Calls() []fragtype.Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fragtype.Range(nil), m.calls...)
}

// Completed returns the start offsets of successful fetches in completion order.
func (m *MemTransport) Completed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.completed...)
}

// RecordingSink captures assembled output in memory.
type RecordingSink struct {
	mu        sync.Mutex
	Committed map[string][]byte
	Opened    int
}

// NewRecordingSink returns an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{Committed: make(map[string][]byte)}
}

// Writer opens a committer for archiveID.
func (s *RecordingSink) Writer(archiveID string) (assemble.Committer, error) {
	s.mu.Lock()
	s.Opened++
	s.mu.Unlock()
	return &RecordingCommitter{sink: s, archiveID: archiveID}, nil
}

// Writes returns the number of committers opened.
func (s *RecordingSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Opened
}

// Output returns the committed content for archiveID.
func (s *RecordingSink) Output(archiveID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Committed[archiveID]
	return data, ok
}

// RecordingCommitter buffers writes until Commit.
type RecordingCommitter struct {
	sink      *RecordingSink
	archiveID string
	buf       bytes.Buffer
}

// Write implements io.Writer.
func (c *RecordingCommitter) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// Commit publishes the buffered content.
func (c *RecordingCommitter) Commit() error {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	c.sink.Committed[c.archiveID] = bytes.Clone(c.buf.Bytes())
	return nil
}

// Discard drops the buffered content.
func (c *RecordingCommitter) Discard() error {
	c.buf.Reset()
	return nil
}
