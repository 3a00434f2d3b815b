package rangefetch

import (
	"context"
	"fmt"
	nethttp "net/http"

	rfhttp "github.com/meigma/rangefetch/http"
	"github.com/meigma/rangefetch/s3"
)

// DefaultS3URLTemplate names archive objects after their id when the S3
// strategy has no resolver or URL template.
const DefaultS3URLTemplate = ArchivePlaceholder + ".zip"

// Transport fetches raw byte ranges of remote archives.
//
// Fetch must return exactly r.Len() bytes or an error wrapping
// [ErrTransport]. Implementations must be safe for concurrent use.
type Transport interface {
	Fetch(ctx context.Context, archiveID string, r Range) ([]byte, error)
}

// TransportFunc adapts a function to [Transport].
type TransportFunc func(ctx context.Context, archiveID string, r Range) ([]byte, error)

// Fetch implements [Transport].
func (f TransportFunc) Fetch(ctx context.Context, archiveID string, r Range) ([]byte, error) {
	return f(ctx, archiveID, r)
}

// transportDeps are the collaborators a transport may need.
type transportDeps struct {
	resolver    Resolver
	credentials CredentialsProvider
	httpClient  *nethttp.Client
}

// newTransport builds the transport selected by cfg.Strategy.
func newTransport(ctx context.Context, cfg Config, deps transportDeps) (Transport, error) {
	resolver, err := resolverFor(cfg, deps.resolver)
	if err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case StrategyS3:
		provider := deps.credentials
		if provider == nil {
			provider = s3.EnvCredentials()
		}
		return s3.NewFetcher(ctx, cfg.S3, resolver, provider)
	case StrategyHTTP:
		opts := make([]rfhttp.Option, 0, len(cfg.HTTP.Headers)+2)
		if deps.httpClient != nil {
			opts = append(opts, rfhttp.WithClient(deps.httpClient))
		}
		for k, v := range cfg.HTTP.Headers {
			opts = append(opts, rfhttp.WithHeader(k, v))
		}
		if cfg.HTTP.UserAgent != "" {
			opts = append(opts, rfhttp.WithHeader("User-Agent", cfg.HTTP.UserAgent))
		}
		return rfhttp.NewFetcher(resolver, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %s", ErrConfig, cfg.Strategy)
	}
}

// resolverFor returns the explicit resolver, or a cached template resolver
// built from the configuration.
func resolverFor(cfg Config, explicit Resolver) (Resolver, error) {
	if explicit != nil {
		return explicit, nil
	}
	template := cfg.URLTemplate
	if template == "" {
		if cfg.Strategy != StrategyS3 {
			return nil, fmt.Errorf("%w: %s strategy requires a resolver or url template", ErrConfig, cfg.Strategy)
		}
		template = DefaultS3URLTemplate
	}
	tr, err := NewTemplateResolver(template)
	if err != nil {
		return nil, err
	}
	return NewCachingResolver(tr), nil
}
