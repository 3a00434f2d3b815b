// Package assemble joins decoded fragments into the output artifact.
package assemble

import (
	"fmt"
	"io"
)

// Extension is the file extension of assembled artifacts.
const Extension = ".xml"

// ArtifactName returns the artifact file name for archiveID.
func ArtifactName(archiveID string) string {
	return archiveID + Extension
}

// Assemble writes parts to the sink in order with no separators and commits
// the result. On any error the committer is discarded.
// It returns the number of bytes written.
func Assemble(sink Sink, archiveID string, parts [][]byte) (int64, error) {
	w, err := sink.Writer(archiveID)
	if err != nil {
		return 0, fmt.Errorf("assemble %s: %w", archiveID, err)
	}

	var written int64
	for i, part := range parts {
		if err := writeAll(w, part); err != nil {
			_ = w.Discard() //nolint:errcheck // best-effort cleanup
			return 0, fmt.Errorf("assemble %s: part %d: %w", archiveID, i, err)
		}
		written += int64(len(part))
	}

	if err := w.Commit(); err != nil {
		return 0, fmt.Errorf("assemble %s: commit: %w", archiveID, err)
	}
	return written, nil
}

// writeAll writes all data to w, handling partial writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
