// Package rangefetch extracts metadata fragments embedded in large remote
// archives without downloading the archives in full.
//
// Each fragment is located by a byte range into the archive and stored as a
// raw compressed stream with no container header. An [Extractor] fetches the
// declared ranges concurrently, decodes each one independently, and writes
// the decoded bytes to a [Sink] in the order the fragments were declared.
//
// # Quick Start
//
// Extract one archive listed in an offset table over plain HTTP:
//
//	cfg := rangefetch.DefaultConfig()
//	cfg.Strategy = rangefetch.StrategyHTTP
//	cfg.URLTemplate = "https://example.com/data/{archive}.zip"
//
//	x, err := rangefetch.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	path, err := x.ExtractArchive(ctx, "offsets.json", "", "./out")
//
// The S3 strategy reads short-lived credentials from a
// [CredentialsProvider], [EnvCredentials] by default:
//
//	x, err := rangefetch.New(ctx, rangefetch.DefaultConfig(),
//	    rangefetch.WithResolver(resolver),
//	    rangefetch.WithCredentials(provider),
//	)
//
// # Ordering and failures
//
// Output order always equals declaration order, whatever order the range
// requests complete in. The first failed fetch or decode fails the whole
// extraction: nothing is written to the sink and no partial artifact is
// left behind. Failures wrap [ErrTransport] or [ErrDecode] inside a
// [*FragmentError] naming the fragment and range.
package rangefetch
