package platform

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
)

// LocalStorage writes objects under a directory that the HTTP server exposes
// at a public base URL.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage creates dir if needed.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the root directory on disk.
func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) Upload(ctx context.Context, bucket, objectPath string, r io.Reader, _ string) error {
	defer observability.TrackBackendCall("storage", "upload")()

	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return err
	}
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write object: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}

func (s *LocalStorage) PublicURL(bucket, objectPath string) string {
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return ""
	}
	return s.baseURL + "/" + escapeKey(key)
}

// S3Storage stores objects in one S3 bucket, using the logical bucket name
// as a key prefix.
type S3Storage struct {
	uploader *s3manager.Uploader
	bucket   string
	region   string
}

// NewS3Storage builds an uploader from the default AWS credential chain.
func NewS3Storage(bucket, region string) (*S3Storage, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS session: %w", err)
	}
	return &S3Storage{uploader: s3manager.NewUploader(sess), bucket: bucket, region: region}, nil
}

func (s *S3Storage) Upload(ctx context.Context, bucket, objectPath string, r io.Reader, contentType string) error {
	defer observability.TrackBackendCall("storage", "upload")()

	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return err
	}
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) PublicURL(bucket, objectPath string) string {
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return ""
	}
	host := s.bucket + ".s3.amazonaws.com"
	if s.region != "" {
		host = s.bucket + ".s3." + s.region + ".amazonaws.com"
	}
	return "https://" + host + "/" + escapeKey(key)
}

type disabledStorage struct{}

func (disabledStorage) Upload(context.Context, string, string, io.Reader, string) error {
	return fmt.Errorf("file uploads are disabled: %w", backend.ErrNotConfigured)
}

func (disabledStorage) PublicURL(string, string) string { return "" }

// objectKey joins bucket and path and rejects anything escaping the bucket.
func objectKey(bucket, objectPath string) (string, error) {
	if bucket == "" || objectPath == "" {
		return "", fmt.Errorf("bucket and path are required")
	}
	clean := path.Clean("/" + objectPath)
	if strings.Contains(bucket, "/") || strings.Contains(bucket, "..") {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return bucket + clean, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
