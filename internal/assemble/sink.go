package assemble

import (
	"io"
	"sync"
)

// Sink receives the assembled artifact of an extraction.
type Sink interface {
	// Writer returns a writer for the artifact of archiveID.
	// The returned Committer must have Commit called after a successful
	// write, or Discard called on any error.
	Writer(archiveID string) (Committer, error)
}

// Committer is a writer that can be committed or discarded.
//
// Implementations should stage writes until Commit is called so that a
// failed write never leaves a partial artifact behind.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}

// WriterSink streams the artifact to an io.Writer.
//
// Assemble is only called after every fragment has been decoded, so the
// writer never sees a partial artifact from a failed fetch. A failure while
// writing can still leave a prefix in w.
//
// A WriterSink is safe for concurrent use. Each committer holds the sink
// from Writer until Commit or Discard, so concurrent artifacts are written
// one after another, never interleaved.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink that writes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Writer returns a committer writing straight to the underlying writer.
// It blocks while another artifact is being written.
func (s *WriterSink) Writer(string) (Committer, error) {
	s.mu.Lock()
	return &writerCommitter{sink: s}, nil
}

type writerCommitter struct {
	sink *WriterSink
	once sync.Once
}

func (c *writerCommitter) Write(p []byte) (int, error) {
	return c.sink.w.Write(p)
}

func (c *writerCommitter) Commit() error {
	defer c.release()
	if f, ok := c.sink.w.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}

func (c *writerCommitter) Discard() error {
	c.release()
	return nil
}

func (c *writerCommitter) release() {
	c.once.Do(c.sink.mu.Unlock)
}
