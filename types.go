package rangefetch

import (
	"github.com/meigma/rangefetch/internal/assemble"
	"github.com/meigma/rangefetch/internal/decode"
	"github.com/meigma/rangefetch/internal/fragtype"
	"github.com/meigma/rangefetch/s3"
)

// --- Re-exports from fragtype ---

// Range is a half-open byte interval [Start, Stop) within an archive.
type Range = fragtype.Range

// Fragment is a named byte range of one archive.
type Fragment = fragtype.Fragment

// FragmentSet is an ordered, non-empty set of fragments of one archive.
type FragmentSet = fragtype.FragmentSet

// Resolver maps an archive id to its download URL.
type Resolver = fragtype.Resolver

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc = fragtype.ResolverFunc

var (
	NewRange       = fragtype.NewRange
	NewFragment    = fragtype.NewFragment
	NewFragmentSet = fragtype.NewFragmentSet
)

// --- Re-exports from decode ---

// Codec identifies how fragments are compressed.
type Codec = decode.Codec

// Codec constants.
const (
	CodecDeflate = decode.CodecDeflate
	CodecZstd    = decode.CodecZstd
	CodecStore   = decode.CodecStore
)

// ParseCodec parses a codec name.
var ParseCodec = decode.ParseCodec

// --- Re-exports from assemble ---

// Sink receives the assembled artifact of an extraction.
type Sink = assemble.Sink

// Committer is a writer that can be committed or discarded.
type Committer = assemble.Committer

// FileSink writes each artifact to <dir>/<archiveID>.xml atomically.
type FileSink = assemble.FileSink

// FileSinkOption configures a FileSink.
type FileSinkOption = assemble.FileSinkOption

// WriterSink streams the artifact to an io.Writer.
type WriterSink = assemble.WriterSink

var (
	NewFileSink   = assemble.NewFileSink
	NewWriterSink = assemble.NewWriterSink
	WithOverwrite = assemble.WithOverwrite
	WithFileMode  = assemble.WithFileMode
	ArtifactName  = assemble.ArtifactName
)

// --- Re-exports from s3 ---

// Credentials are short-lived object store credentials.
type Credentials = s3.Credentials

// CredentialsProvider supplies object store credentials.
type CredentialsProvider = s3.CredentialsProvider

// EnvCredentials reads credentials from the standard AWS environment variables.
var EnvCredentials = s3.EnvCredentials
