package artifacts

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// FakeS3 serves an in-memory bucket over HTTP and returns the S3Config that
// reaches it, as E2E_ARTIFACTS_BUCKET and AWS_ENDPOINT_URL_S3 would.
// The server is closed when the test completes.
func FakeS3(t testing.TB, bucketName, prefix string) S3Config {
	t.Helper()

	backend := s3mem.New()
	if err := backend.CreateBucket(bucketName); err != nil {
		t.Fatalf("create fake bucket %q: %v", bucketName, err)
	}
	ts := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(ts.Close)

	return S3Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucketName,
		Prefix:          prefix,
		UsePathStyle:    true,
	}
}

// TestSink returns an S3Sink over FakeS3.
func TestSink(t testing.TB, bucketName, prefix string) *S3Sink {
	t.Helper()

	sink, err := NewS3Sink(context.Background(), FakeS3(t, bucketName, prefix))
	if err != nil {
		t.Fatalf("build fake s3 sink: %v", err)
	}
	return sink
}
