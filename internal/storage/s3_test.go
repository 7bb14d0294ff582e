package storage

import (
	"testing"

	"github.com/minio/minio-go/v7"
)

func testS3(t *testing.T, prefix string) *S3 {
	t.Helper()
	s, err := NewS3(S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "labs",
		Prefix:    prefix,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return s
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(S3Config{Endpoint: "localhost:9000"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := NewS3(S3Config{Bucket: "labs"}); err == nil {
		t.Error("expected error without endpoint")
	}
}

func TestS3_ObjectKey(t *testing.T) {
	s := testS3(t, "/submissions/")

	key, err := s.objectKey("lab1/main.py")
	if err != nil {
		t.Fatalf("objectKey: %v", err)
	}
	if key != "submissions/lab1/main.py" {
		t.Errorf("key = %q", key)
	}
	for _, bad := range []string{"", "../x.py", "a/../../x.py"} {
		if _, err := s.objectKey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestS3_ObjectChecksum(t *testing.T) {
	withMeta := minio.ObjectInfo{
		ETag:         `"etag"`,
		UserMetadata: minio.StringMap{"X-Amz-Meta-Sha256": "abc"},
	}
	if got := objectChecksum(withMeta); got != "abc" {
		t.Errorf("checksum = %q, want recorded sha256", got)
	}
	if got := objectChecksum(minio.ObjectInfo{ETag: `"etag"`}); got != "etag" {
		t.Errorf("checksum = %q, want unquoted etag", got)
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("x.IPYNB"); got != "application/x-ipynb+json" {
		t.Errorf("notebook content type = %q", got)
	}
	if got := contentType("x.py"); got != "text/x-python" {
		t.Errorf("script content type = %q", got)
	}
}
