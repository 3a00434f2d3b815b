package http_test

import (
	"bytes"
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rangehttp "github.com/meigma/rangefetch/http"
	"github.com/meigma/rangefetch/internal/fragtype"
)

func staticResolver(url string) fragtype.Resolver {
	return fragtype.ResolverFunc(func(context.Context, string) (string, error) {
		return url, nil
	})
}

func TestFetchRange(t *testing.T) {
	data := []byte("0123456789abcdefghijKLMNOP")

	var mu sync.Mutex
	var gotRange, gotEncoding, gotUA string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		mu.Lock()
		gotRange = r.Header.Get("Range")
		gotEncoding = r.Header.Get("Accept-Encoding")
		gotUA = r.Header.Get("User-Agent")
		mu.Unlock()
		nethttp.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	f, err := rangehttp.NewFetcher(staticResolver(server.URL), rangehttp.WithHeader("User-Agent", "rangefetch-test"))
	require.NoError(t, err)

	got, err := f.Fetch(context.Background(), "ARCHIVE1", fragtype.Range{Start: 10, Stop: 20})
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", string(got))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "bytes=10-19", gotRange)
	assert.Equal(t, "identity", gotEncoding)
	assert.Equal(t, "rangefetch-test", gotUA)
}

func TestFetchSingleByte(t *testing.T) {
	data := []byte("xyz")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	f, err := rangehttp.NewFetcher(staticResolver(server.URL))
	require.NoError(t, err)

	got, err := f.Fetch(context.Background(), "ARCHIVE1", fragtype.Range{Start: 2, Stop: 3})
	require.NoError(t, err)
	assert.Equal(t, "z", string(got))
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler nethttp.HandlerFunc
	}{
		{
			name: "range unsupported",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				_, _ = w.Write([]byte("the whole archive"))
			},
		},
		{
			name: "forbidden",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(nethttp.StatusForbidden)
			},
		},
		{
			name: "not satisfiable",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(nethttp.StatusRequestedRangeNotSatisfiable)
			},
		},
		{
			name: "truncated body",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write([]byte("0123"))
			},
		},
		{
			name: "body too long",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write([]byte("0123456789ABC"))
			},
		},
		{
			name: "wrong content range",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.Header().Set("Content-Range", "bytes 5-14/100")
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write([]byte("0123456789"))
			},
		},
		{
			name: "malformed content range",
			handler: func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.Header().Set("Content-Range", "items 0-9/100")
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write([]byte("0123456789"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			t.Cleanup(server.Close)

			f, err := rangehttp.NewFetcher(staticResolver(server.URL))
			require.NoError(t, err)

			_, err = f.Fetch(context.Background(), "ARCHIVE1", fragtype.Range{Start: 0, Stop: 10})
			require.ErrorIs(t, err, fragtype.ErrTransport)
		})
	}
}

func TestFetchNetworkFailure(t *testing.T) {
	server := httptest.NewServer(nethttp.NotFoundHandler())
	url := server.URL
	server.Close()

	f, err := rangehttp.NewFetcher(staticResolver(url))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "ARCHIVE1", fragtype.Range{Start: 0, Stop: 10})
	require.ErrorIs(t, err, fragtype.ErrTransport)
}

func TestFetchResolverFailure(t *testing.T) {
	errNoSuchArchive := errors.New("no such archive")
	f, err := rangehttp.NewFetcher(fragtype.ResolverFunc(func(context.Context, string) (string, error) {
		return "", errNoSuchArchive
	}))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "MISSING", fragtype.Range{Start: 0, Stop: 10})
	require.ErrorIs(t, err, fragtype.ErrTransport)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestNewFetcherRequiresResolver(t *testing.T) {
	_, err := rangehttp.NewFetcher(nil)
	require.ErrorIs(t, err, fragtype.ErrConfig)
}
