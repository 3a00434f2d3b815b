//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/rangefetch/internal/testutil"
	"github.com/meigma/rangefetch/s3"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
	minioRegion   = "us-east-1"
)

// --- MinIO Container Setup ---

var (
	minioOnce     sync.Once
	minioEndpoint string
	minioErr      error
)

// getMinIO returns the shared MinIO endpoint, starting the container if needed.
// The container is shared across all tests for performance.
func getMinIO(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	minioOnce.Do(func() {
		minioEndpoint, minioErr = startMinIOContainer(context.Background())
	})

	if minioErr != nil {
		tb.Fatalf("start minio container: %v", minioErr)
	}
	return minioEndpoint
}

// startMinIOContainer starts a MinIO server and returns its host:port address.
func startMinIOContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start minio container: %w", err)
	}

	// Container cleanup is handled by the testcontainers Reaper.
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return "", fmt.Errorf("resolve minio endpoint: %w", err)
	}
	return endpoint, nil
}

// --- Fixtures ---

// adminClient returns a MinIO client with root credentials.
func adminClient(tb testing.TB, endpoint string) *minio.Client {
	tb.Helper()
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioUser, minioPassword, ""),
		Secure: false,
		Region: minioRegion,
	})
	require.NoError(tb, err, "minio.New")
	return client
}

// newBucket creates a bucket named after the test.
func newBucket(tb testing.TB, client *minio.Client) string {
	tb.Helper()
	name := strings.ToLower(tb.Name())
	name = strings.NewReplacer("/", "-", "_", "-").Replace(name)
	if len(name) > 50 {
		name = name[:50]
	}
	bucket := "rf-" + strings.Trim(name, "-")
	err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{Region: minioRegion})
	require.NoError(tb, err, "MakeBucket(%s)", bucket)
	return bucket
}

// putArchive uploads a test archive as <archiveID>.zip.
func putArchive(tb testing.TB, client *minio.Client, bucket, archiveID string, archive *testutil.Archive) {
	tb.Helper()
	_, err := client.PutObject(context.Background(), bucket, archiveID+".zip",
		bytes.NewReader(archive.Data), int64(len(archive.Data)), minio.PutObjectOptions{})
	require.NoError(tb, err, "PutObject")
}

// s3Config returns a configuration for bucket on the test server.
func s3Config(endpoint, bucket string) s3.Config {
	return s3.Config{
		Bucket:   bucket,
		Endpoint: endpoint,
		Region:   minioRegion,
		Insecure: true,
	}
}

// rootCredentials are the MinIO root credentials.
func rootCredentials() s3.StaticCredentials {
	return s3.StaticCredentials{AccessKeyID: minioUser, SecretAccessKey: minioPassword}
}

// writeTable writes a JSON offset table for archive to a temp file.
func writeTable(tb testing.TB, archiveID string, archive *testutil.Archive) string {
	tb.Helper()
	entries := make([]string, 0, len(archive.Order))
	for _, name := range archive.Order {
		r := archive.Ranges[name]
		entries = append(entries, fmt.Sprintf("%q: {\"offset_start\": %d, \"offset_stop\": %d}", name, r.Start, r.Stop))
	}
	path := filepath.Join(tb.TempDir(), "offsets.json")
	table := fmt.Sprintf("{%q: {%s}}", archiveID, strings.Join(entries, ",\n"))
	require.NoError(tb, os.WriteFile(path, []byte(table), 0o644))
	return path
}

// metadataArchive builds an archive shaped like a SAFE product's metadata.
func metadataArchive(tb testing.TB) (*testutil.Archive, string) {
	tb.Helper()
	names := []string{
		"manifest.safe",
		"annotation/s1a-iw1-slc-vv.xml",
		"annotation/s1a-iw2-slc-vv.xml",
		"annotation/calibration/calibration-s1a-iw1-slc-vv.xml",
	}
	plaintexts := make([][]byte, len(names))
	var want strings.Builder
	for i, name := range names {
		plaintexts[i] = []byte(fmt.Sprintf("<file name=%q>%s</file>\n", name, strings.Repeat("x", 512*(i+1))))
		want.Write(plaintexts[i])
	}
	return testutil.BuildArchive(tb, names, plaintexts), want.String()
}
