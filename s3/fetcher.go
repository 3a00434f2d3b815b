// Package s3 provides a range transport backed by authenticated S3
// GetObject range reads.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/meigma/rangefetch/internal/fragtype"
	"github.com/meigma/rangefetch/internal/sizing"
)

// Defaults for the archive bucket.
const (
	DefaultBucket   = "asf-ngap2w-p-s1-slc-7b420b89"
	DefaultEndpoint = "s3.us-west-2.amazonaws.com"
	DefaultRegion   = "us-west-2"
)

// Config holds the storage location of the archives.
type Config struct {
	// Bucket is the S3 bucket holding the archives.
	Bucket string `yaml:"bucket"`

	// Endpoint is the S3 endpoint host (e.g., "s3.us-west-2.amazonaws.com").
	Endpoint string `yaml:"endpoint"`

	// Region is the bucket region. Setting it avoids a bucket location lookup.
	Region string `yaml:"region"`

	// Insecure disables TLS.
	Insecure bool `yaml:"insecure"`
}

// DefaultConfig returns the configuration of the public archive bucket.
func DefaultConfig() Config {
	return Config{
		Bucket:   DefaultBucket,
		Endpoint: DefaultEndpoint,
		Region:   DefaultRegion,
	}
}

// validate checks the configuration. The endpoint is only needed when the
// fetcher builds its own client.
func (c Config) validate(needEndpoint bool) error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: s3 bucket is required", fragtype.ErrConfig)
	}
	if needEndpoint && c.Endpoint == "" {
		return fmt.Errorf("%w: s3 endpoint is required", fragtype.ErrConfig)
	}
	return nil
}

// Fetcher fetches archive byte ranges with ranged GetObject requests.
//
// The object key is the base name of the archive's resolved download URL.
// A Fetcher is safe for concurrent use; the client and credentials are
// shared read-only.
type Fetcher struct {
	client   *minio.Client
	bucket   string
	resolver fragtype.Resolver
}

// Option configures a Fetcher.
type Option func(*fetcherOptions)

type fetcherOptions struct {
	client *minio.Client
}

// WithClient uses a pre-configured MinIO client.
// Endpoint, region and credentials are ignored when set.
func WithClient(client *minio.Client) Option {
	return func(o *fetcherOptions) {
		o.client = client
	}
}

// NewFetcher creates a Fetcher for the bucket in cfg.
//
// Credentials are requested from provider once, at construction; they are
// expected to outlive a single extraction.
func NewFetcher(ctx context.Context, cfg Config, resolver fragtype.Resolver, provider CredentialsProvider, opts ...Option) (*Fetcher, error) {
	var o fetcherOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.validate(o.client == nil); err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: s3 fetcher requires a resolver", fragtype.ErrConfig)
	}

	client := o.client
	if client == nil {
		if provider == nil {
			return nil, fmt.Errorf("%w: s3 fetcher requires credentials", fragtype.ErrConfig)
		}
		creds, err := provider.Credentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: get credentials: %v", fragtype.ErrTransport, err)
		}
		if err := creds.Validate(); err != nil {
			return nil, err
		}
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:      credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
			Secure:     !cfg.Insecure,
			Region:     cfg.Region,
			MaxRetries: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create s3 client: %v", fragtype.ErrConfig, err)
		}
	}

	return &Fetcher{
		client:   client,
		bucket:   cfg.Bucket,
		resolver: resolver,
	}, nil
}

// Bucket returns the bucket the fetcher reads from.
func (f *Fetcher) Bucket() string {
	return f.bucket
}

// Fetch returns exactly the bytes of r from the archive object.
// Failures, including authentication errors and short bodies, wrap
// fragtype.ErrTransport.
func (f *Fetcher) Fetch(ctx context.Context, archiveID string, r fragtype.Range) ([]byte, error) {
	key, err := f.objectKey(ctx, archiveID)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(r.Start, r.Last()); err != nil {
		return nil, fmt.Errorf("%w: %v", fragtype.ErrTransport, err)
	}

	obj, err := f.client.GetObject(ctx, f.bucket, key, opts)
	if err != nil {
		return nil, translate(f.bucket, key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	size, err := sizing.ToInt(r.Len(), fmt.Errorf("%w: range of %d bytes too large", fragtype.ErrTransport, r.Len()))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(obj, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated body (%d of %d bytes)", fragtype.ErrTransport, n, r.Len())
		}
		return nil, translate(f.bucket, key, err)
	}
	var extra [1]byte
	if m, _ := obj.Read(extra[:]); m > 0 {
		return nil, fmt.Errorf("%w: body longer than %d bytes", fragtype.ErrTransport, r.Len())
	}
	return buf, nil
}

// objectKey resolves the archive URL and returns its base name.
func (f *Fetcher) objectKey(ctx context.Context, archiveID string) (string, error) {
	raw, err := f.resolver.ResolveURL(ctx, archiveID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %v", fragtype.ErrTransport, archiveID, err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %v", fragtype.ErrTransport, archiveID, err)
	}
	key := path.Base(u.Path)
	if key == "." || key == "/" {
		return "", fmt.Errorf("%w: resolve %s: no object name in %q", fragtype.ErrTransport, archiveID, raw)
	}
	return key, nil
}

// translate wraps a MinIO error with the bucket, key and S3 error code.
func translate(bucket, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code != "" {
		return fmt.Errorf("%w: s3://%s/%s: %s: %s", fragtype.ErrTransport, bucket, key, resp.Code, resp.Message)
	}
	return fmt.Errorf("%w: s3://%s/%s: %v", fragtype.ErrTransport, bucket, key, err)
}
