package batch_test

import (
	"bytes"
	"context"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	rfhttp "github.com/meigma/rangefetch/http"
	"github.com/meigma/rangefetch/internal/batch"
	"github.com/meigma/rangefetch/internal/decode"
	"github.com/meigma/rangefetch/internal/fragtype"
	"github.com/meigma/rangefetch/internal/testutil"
)

type benchPoolCase struct {
	name      string
	fragments int
	size      int
	workers   int
}

// BenchmarkPoolHTTP fetches and decodes fragments from a local HTTP server.
// Set RANGEFETCH_BENCH_HTTP_LATENCY (e.g. "5ms") to simulate a remote store.
func BenchmarkPoolHTTP(b *testing.B) {
	latency, err := benchLatencyFromEnv()
	if err != nil {
		b.Fatal(err)
	}

	cases := []benchPoolCase{
		{name: "fragments=16/size=16k/workers=1", fragments: 16, size: 16 << 10, workers: 1},
		{name: "fragments=16/size=16k/workers=4", fragments: 16, size: 16 << 10, workers: 4},
		{name: "fragments=16/size=16k/workers=20", fragments: 16, size: 16 << 10, workers: 20},
		{name: "fragments=64/size=4k/workers=20", fragments: 64, size: 4 << 10, workers: 20},
	}

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			names := make([]string, bc.fragments)
			plaintexts := make([][]byte, bc.fragments)
			var total int64
			for i := range bc.fragments {
				names[i] = fmt.Sprintf("f%03d.xml", i)
				plaintexts[i] = bytes.Repeat([]byte{byte('a' + i%26)}, bc.size)
				total += int64(bc.size)
			}
			archive := testutil.BuildArchive(b, names, plaintexts)
			set := archive.FragmentSet(b, "BENCH")

			server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				if latency > 0 {
					time.Sleep(latency)
				}
				nethttp.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(archive.Data))
			}))
			b.Cleanup(server.Close)

			fetcher, err := rfhttp.NewFetcher(fragtype.ResolverFunc(func(context.Context, string) (string, error) {
				return server.URL + "/archive.zip", nil
			}), rfhttp.WithClient(server.Client()))
			if err != nil {
				b.Fatal(err)
			}
			dec, err := decode.New(decode.CodecDeflate)
			if err != nil {
				b.Fatal(err)
			}
			pool := batch.NewPool(batch.WithWorkers(bc.workers))

			b.SetBytes(total)
			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				_, err := pool.Run(context.Background(), set.Len(), func(ctx context.Context, i int) ([]byte, error) {
					f := set.At(i)
					raw, err := fetcher.Fetch(ctx, f.ArchiveID, f.Range)
					if err != nil {
						return nil, err
					}
					return dec.Decode(raw)
				})
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func benchLatencyFromEnv() (time.Duration, error) {
	value := os.Getenv("RANGEFETCH_BENCH_HTTP_LATENCY")
	if value == "" {
		return 0, nil
	}
	latency, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse RANGEFETCH_BENCH_HTTP_LATENCY: %w", err)
	}
	return latency, nil
}
