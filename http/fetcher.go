// Package http provides a range transport backed by plain HTTP range requests.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/meigma/rangefetch/internal/fragtype"
	"github.com/meigma/rangefetch/internal/sizing"
)

// Fetcher fetches archive byte ranges with HTTP range GET requests.
// It needs no credentials. A Fetcher is safe for concurrent use.
type Fetcher struct {
	resolver fragtype.Resolver
	client   *nethttp.Client
	headers  nethttp.Header
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(f *Fetcher) {
		if headers == nil {
			return
		}
		f.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		if f.headers == nil {
			f.headers = make(nethttp.Header)
		}
		f.headers.Set(key, value)
	}
}

// NewFetcher creates a Fetcher that resolves archive URLs with resolver.
func NewFetcher(resolver fragtype.Resolver, opts ...Option) (*Fetcher, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: http fetcher requires a resolver", fragtype.ErrConfig)
	}
	f := &Fetcher{
		resolver: resolver,
		client:   nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = nethttp.DefaultClient
	}
	return f, nil
}

// Fetch returns exactly the bytes of r from the archive's resolved URL.
//
// The half-open range is sent as the inclusive header bytes=Start-(Stop-1).
// Any status other than 206 Partial Content, or a body that is shorter or
// longer than the range, fails with fragtype.ErrTransport. No retry is done.
func (f *Fetcher) Fetch(ctx context.Context, archiveID string, r fragtype.Range) ([]byte, error) {
	url, err := f.resolver.ResolveURL(ctx, archiveID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", fragtype.ErrTransport, archiveID, err)
	}

	req, err := f.newRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fragtype.ErrTransport, err)
	}
	req.Header.Set("Range", r.Header())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fragtype.ErrTransport, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusOK:
		return nil, fmt.Errorf("%w: range requests not supported by %s", fragtype.ErrTransport, url)
	default:
		return nil, fmt.Errorf("%w: range request failed: %s", fragtype.ErrTransport, resp.Status)
	}

	if crange := resp.Header.Get("Content-Range"); crange != "" {
		start, end, err := parseContentRange(crange)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fragtype.ErrTransport, err)
		}
		if start != r.Start || end != r.Last() {
			return nil, fmt.Errorf("%w: server returned bytes %d-%d for %s", fragtype.ErrTransport, start, end, r.Header())
		}
	}

	return readExact(resp.Body, r.Len())
}

// readExact reads exactly n bytes from body and rejects any excess.
func readExact(body io.Reader, n int64) ([]byte, error) {
	size, err := sizing.ToInt(n, fmt.Errorf("%w: range of %d bytes too large", fragtype.ErrTransport, n))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	read, err := io.ReadFull(body, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated body (%d of %d bytes)", fragtype.ErrTransport, read, n)
		}
		return nil, fmt.Errorf("%w: %v", fragtype.ErrTransport, err)
	}
	var extra [1]byte
	if m, _ := body.Read(extra[:]); m > 0 {
		return nil, fmt.Errorf("%w: body longer than %d bytes", fragtype.ErrTransport, n)
	}
	return buf, nil
}

func (f *Fetcher) newRequest(ctx context.Context, url string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range f.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

// parseContentRange parses "bytes start-end/total" and returns start and end.
func parseContentRange(value string) (int64, int64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	span, _, ok := strings.Cut(strings.TrimPrefix(value, "bytes "), "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return 0, 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return start, end, nil
}
