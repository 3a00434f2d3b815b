package assemble

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink writes artifacts named <archiveID>.xml into a directory.
//
// Content is written to a temporary file in the same directory and renamed
// to the final path on Commit, so a partially written artifact is never
// visible at the final path.
type FileSink struct {
	destDir   string
	overwrite bool
	mode      os.FileMode
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows replacing an existing artifact.
// By default, Writer fails if the artifact already exists.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithFileMode sets the permission bits of committed artifacts (default 0o644).
func WithFileMode(mode os.FileMode) FileSinkOption {
	return func(s *FileSink) {
		s.mode = mode.Perm()
	}
}

// NewFileSink creates a FileSink that writes to destDir.
// destDir is created on first use if it does not exist.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir: destDir,
		mode:    0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the final artifact path for archiveID.
func (s *FileSink) Path(archiveID string) string {
	return filepath.Join(s.destDir, ArtifactName(archiveID))
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *FileSink) Writer(archiveID string) (Committer, error) {
	if archiveID == "" || strings.ContainsAny(archiveID, `/\`) || archiveID == "." || archiveID == ".." {
		return nil, fmt.Errorf("invalid archive id %q for artifact name", archiveID)
	}
	if err := os.MkdirAll(s.destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", s.destDir, err)
	}

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}

	destRel := ArtifactName(archiveID)
	if !s.overwrite {
		if _, err := root.Stat(destRel); err == nil {
			_ = root.Close() //nolint:errcheck // best-effort cleanup
			return nil, fmt.Errorf("artifact %s: %w", s.Path(archiveID), os.ErrExist)
		}
	}

	tempFile, tempRel, err := createTempFile(root, ".rangefetch-")
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &fileCommitter{
		destPath: s.Path(archiveID),
		destRel:  destRel,
		tempFile: tempFile,
		tempRel:  tempRel,
		root:     root,
		mode:     s.mode,
	}, nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	destPath string
	destRel  string
	tempFile *os.File
	tempRel  string
	root     *os.Root
	mode     os.FileMode
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit syncs and closes the temp file and renames it to the final path.
func (c *fileCommitter) Commit() error {
	if err := c.tempFile.Sync(); err != nil {
		return c.abort(fmt.Errorf("sync temp file: %w", err))
	}
	if err := c.tempFile.Close(); err != nil {
		return c.abort(fmt.Errorf("close temp file: %w", err))
	}
	if err := c.root.Chmod(c.tempRel, c.mode); err != nil {
		return c.abort(fmt.Errorf("chmod: %w", err))
	}
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		return c.abort(fmt.Errorf("rename to %s: %w", c.destPath, err))
	}
	_ = c.root.Close() //nolint:errcheck // best-effort cleanup
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	if err := c.root.Remove(c.tempRel); err != nil {
		_ = c.root.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	return c.root.Close()
}

func (c *fileCommitter) abort(err error) error {
	_ = c.tempFile.Close()       //nolint:errcheck // best-effort cleanup
	_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
	_ = c.root.Close()           //nolint:errcheck // best-effort cleanup
	return err
}

func createTempFile(root *os.Root, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := prefix + name
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
