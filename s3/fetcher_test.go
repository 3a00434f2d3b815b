package s3

import (
	"bytes"
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/rangefetch/internal/fragtype"
)

const testKey = "S1A_IW_SLC__1SDV_20200604T022251.zip"

var testCreds = StaticCredentials{AccessKeyID: "minioadmin", SecretAccessKey: "minioadmin", SessionToken: "token"}

func resolverFor(url string) fragtype.Resolver {
	return fragtype.ResolverFunc(func(context.Context, string) (string, error) {
		return url, nil
	})
}

// fakeS3 serves a single object with range support and records requests.
type fakeS3 struct {
	mu       sync.Mutex
	data     []byte
	paths    []string
	ranges   []string
	auth     []string
	tokens   []string
	deny     bool
	truncate bool
}

func (s *fakeS3) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.ranges = append(s.ranges, r.Header.Get("Range"))
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.tokens = append(s.tokens, r.Header.Get("X-Amz-Security-Token"))
	deny, truncate := s.deny, s.truncate
	s.mu.Unlock()

	if deny {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(nethttp.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
			`<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
		return
	}
	if r.URL.Path != "/test-bucket/"+testKey {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(nethttp.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
			`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		return
	}
	data := s.data
	if truncate {
		data = data[:3]
	}
	nethttp.ServeContent(w, r, testKey, time.Unix(1700000000, 0), bytes.NewReader(data))
}

func newTestFetcher(t *testing.T, fake *fakeS3, url string) *Fetcher {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := Config{
		Bucket:   "test-bucket",
		Endpoint: strings.TrimPrefix(server.URL, "http://"),
		Region:   "us-west-2",
		Insecure: true,
	}
	f, err := NewFetcher(context.Background(), cfg, resolverFor(url), testCreds)
	require.NoError(t, err)
	return f
}

func TestFetchRange(t *testing.T) {
	fake := &fakeS3{data: []byte("0123456789abcdefghijKLMNOP")}
	f := newTestFetcher(t, fake, "https://datapool.example.com/SLC/SA/"+testKey)

	got, err := f.Fetch(context.Background(), "S1A_IW_SLC__1SDV_20200604T022251", fragtype.Range{Start: 10, Stop: 20})
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", string(got))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.paths)
	last := len(fake.paths) - 1
	assert.Equal(t, "/test-bucket/"+testKey, fake.paths[last])
	assert.Equal(t, "bytes=10-19", fake.ranges[last])
	assert.Contains(t, fake.auth[last], "AWS4-HMAC-SHA256")
	assert.Equal(t, "token", fake.tokens[last])
}

func TestFetchAccessDenied(t *testing.T) {
	fake := &fakeS3{data: []byte("0123456789"), deny: true}
	f := newTestFetcher(t, fake, "https://datapool.example.com/"+testKey)

	_, err := f.Fetch(context.Background(), "ARCHIVE", fragtype.Range{Start: 0, Stop: 5})
	require.ErrorIs(t, err, fragtype.ErrTransport)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestFetchMissingObject(t *testing.T) {
	fake := &fakeS3{data: []byte("0123456789")}
	f := newTestFetcher(t, fake, "https://datapool.example.com/OTHER.zip")

	_, err := f.Fetch(context.Background(), "OTHER", fragtype.Range{Start: 0, Stop: 5})
	require.ErrorIs(t, err, fragtype.ErrTransport)
	assert.Contains(t, err.Error(), "NoSuchKey")
}

func TestFetchTruncated(t *testing.T) {
	fake := &fakeS3{data: []byte("0123456789"), truncate: true}
	f := newTestFetcher(t, fake, "https://datapool.example.com/"+testKey)

	_, err := f.Fetch(context.Background(), "ARCHIVE", fragtype.Range{Start: 0, Stop: 8})
	require.ErrorIs(t, err, fragtype.ErrTransport)
}

func TestFetchResolverFailure(t *testing.T) {
	f := &Fetcher{
		bucket: "test-bucket",
		resolver: fragtype.ResolverFunc(func(context.Context, string) (string, error) {
			return "", errors.New("unknown archive")
		}),
	}
	_, err := f.Fetch(context.Background(), "ARCHIVE", fragtype.Range{Start: 0, Stop: 1})
	require.ErrorIs(t, err, fragtype.ErrTransport)
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://datapool.asf.alaska.edu/SLC/SA/S1A_X.zip", want: "S1A_X.zip"},
		{url: "https://host/S1A_X.zip?token=abc", want: "S1A_X.zip"},
		{url: "https://host/", wantErr: true},
		{url: "https://host", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			f := &Fetcher{resolver: resolverFor(tt.url)}
			got, err := f.objectKey(context.Background(), "S1A_X")
			if tt.wantErr {
				require.ErrorIs(t, err, fragtype.ErrTransport)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFetcherValidation(t *testing.T) {
	resolver := resolverFor("https://host/a.zip")
	ctx := context.Background()

	_, err := NewFetcher(ctx, Config{Endpoint: "localhost:9000"}, resolver, testCreds)
	require.ErrorIs(t, err, fragtype.ErrConfig)

	_, err = NewFetcher(ctx, Config{Bucket: "b"}, resolver, testCreds)
	require.ErrorIs(t, err, fragtype.ErrConfig)

	_, err = NewFetcher(ctx, DefaultConfig(), nil, testCreds)
	require.ErrorIs(t, err, fragtype.ErrConfig)

	_, err = NewFetcher(ctx, DefaultConfig(), resolver, nil)
	require.ErrorIs(t, err, fragtype.ErrConfig)

	_, err = NewFetcher(ctx, DefaultConfig(), resolver, StaticCredentials{AccessKeyID: "only-id"})
	require.ErrorIs(t, err, fragtype.ErrConfig)

	errExpired := errors.New("earthdata login expired")
	_, err = NewFetcher(ctx, DefaultConfig(), resolver, CredentialsFunc(func(context.Context) (Credentials, error) {
		return Credentials{}, errExpired
	}))
	require.ErrorIs(t, err, fragtype.ErrTransport)

	f, err := NewFetcher(ctx, DefaultConfig(), resolver, testCreds)
	require.NoError(t, err)
	assert.Equal(t, DefaultBucket, f.Bucket())
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv(EnvAccessKeyID, "AKIA")
	t.Setenv(EnvSecretAccessKey, "secret")
	t.Setenv(EnvSessionToken, "session")

	creds, err := EnvCredentials().Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret", SessionToken: "session"}, creds)

	t.Setenv(EnvSecretAccessKey, "")
	_, err = EnvCredentials().Credentials(context.Background())
	require.ErrorIs(t, err, fragtype.ErrConfig)
}
