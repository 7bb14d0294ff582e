package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/models"
	"github.com/starford/labdesk/internal/parser"
)

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3 implements Provider on top of an S3-compatible object store.
// The bucket is created on first use when missing.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3 creates an S3 provider. No network call is made until first use.
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("storage: s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init s3 client: %w", err)
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, region: region, prefix: prefix}, nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	if s.initErr != nil {
		return fmt.Errorf("storage: ensure bucket: %w", s.initErr)
	}
	return nil
}

// objectKey maps a store-relative path to an object key, rejecting traversal.
func (s *S3) objectKey(rel string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(rel))
	if cleaned == "/" {
		return "", fmt.Errorf("storage: empty path")
	}
	if strings.Contains(rel, "..") {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return s.prefix + strings.TrimPrefix(cleaned, "/"), nil
}

// List returns metadata for every submission object under dir.
// The checksum is the SHA-256 recorded at upload, or the ETag for objects
// written by other clients.
func (s *S3) List(ctx context.Context, dir string) ([]models.SourceMetadata, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	prefix := s.prefix
	if d := strings.Trim(dir, "/"); d != "" {
		prefix += d + "/"
	}

	var out []models.SourceMetadata
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("storage: list: %w", obj.Err)
		}
		if obj.Key == "" || !parser.Supported(obj.Key) {
			continue
		}
		out = append(out, models.SourceMetadata{
			Path:      strings.TrimPrefix(obj.Key, s.prefix),
			Checksum:  objectChecksum(obj),
			Size:      obj.Size,
			UpdatedAt: obj.LastModified,
		})
	}
	return out, nil
}

// Read downloads an object.
func (s *S3) Read(ctx context.Context, rel string) ([]byte, error) {
	key, err := s.objectKey(rel)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("storage: read %s: %w", rel, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write uploads content as a single object. S3 puts are atomic per object.
func (s *S3) Write(ctx context.Context, rel string, content []byte) error {
	key, err := s.objectKey(rel)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:  contentType(rel),
		UserMetadata: map[string]string{checksumMeta: checksum.Sum(content)},
	})
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	return nil
}

// Delete removes an object.
func (s *S3) Delete(ctx context.Context, rel string) error {
	key, err := s.objectKey(rel)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("storage: delete %s: %w", rel, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}

const checksumMeta = "Sha256"

func objectChecksum(obj minio.ObjectInfo) string {
	for k, v := range obj.UserMetadata {
		if strings.EqualFold(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"), checksumMeta) {
			return v
		}
	}
	return strings.Trim(obj.ETag, `"`)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func contentType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".ipynb") {
		return "application/x-ipynb+json"
	}
	return "text/x-python"
}
