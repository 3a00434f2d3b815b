package rangefetch

import (
	"fmt"
	"log/slog"
	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meigma/rangefetch/internal/metrics"
)

// Option configures an Extractor.
type Option func(*Extractor) error

// WithLogger sets the logger for extraction events.
// By default, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) error {
		x.logger = logger
		return nil
	}
}

// WithProgress sets a callback receiving per-fragment progress events.
// The callback is invoked concurrently from the fetch workers.
func WithProgress(fn ProgressFunc) Option {
	return func(x *Extractor) error {
		x.progress = fn
		return nil
	}
}

// WithMetrics registers extraction metrics with reg.
// Collectors already registered by another Extractor are shared.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(x *Extractor) error {
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		x.metrics = m
		return nil
	}
}

// WithTransport sets the range transport, bypassing Config.Strategy.
func WithTransport(t Transport) Option {
	return func(x *Extractor) error {
		if t == nil {
			return fmt.Errorf("%w: transport is nil", ErrConfig)
		}
		x.transport = t
		return nil
	}
}

// WithResolver sets the archive URL resolver, overriding Config.URLTemplate.
func WithResolver(r Resolver) Option {
	return func(x *Extractor) error {
		x.deps.resolver = r
		return nil
	}
}

// WithCredentials sets the credentials provider for the S3 strategy.
// By default, [EnvCredentials] is used.
func WithCredentials(p CredentialsProvider) Option {
	return func(x *Extractor) error {
		x.deps.credentials = p
		return nil
	}
}

// WithHTTPClient sets the HTTP client for the HTTP strategy.
func WithHTTPClient(c *nethttp.Client) Option {
	return func(x *Extractor) error {
		x.deps.httpClient = c
		return nil
	}
}
