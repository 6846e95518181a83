package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/seatback/internal/config"
	"github.com/therealutkarshpriyadarshi/seatback/internal/metrics"
)

// Storage holds original, pre-normalization media in object storage. The
// content root only ever sees normalized output; originals live here so a
// failed conversion can always be retried from the source bytes.
type Storage struct {
	client     *minio.Client
	bucketName string
}

// New creates a new storage client
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// UploadOriginal stores an original media stream under the given object key
func (s *Storage) UploadOriginal(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucketName, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(objectKey),
	})
	if err != nil {
		metrics.RecordStorageOperation("upload", "error", 0)
		return fmt.Errorf("failed to upload object: %w", err)
	}

	metrics.RecordStorageOperation("upload", "success", size)
	return nil
}

// DownloadOriginal streams an original from storage
func (s *Storage) DownloadOriginal(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		metrics.RecordStorageOperation("download", "error", 0)
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return object, nil
}

// DownloadOriginalToFile fetches an original into a local file, typically a
// scratch path the normalization pipeline will consume.
func (s *Storage) DownloadOriginalToFile(ctx context.Context, objectKey, filePath string) error {
	if err := s.client.FGetObject(ctx, s.bucketName, objectKey, filePath, minio.GetObjectOptions{}); err != nil {
		metrics.RecordStorageOperation("download", "error", 0)
		return fmt.Errorf("failed to download object to file: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to stat downloaded file: %w", err)
	}

	metrics.RecordStorageOperation("download", "success", info.Size())
	return nil
}

// UploadOriginalFromFile stores a local file as an original
func (s *Storage) UploadOriginalFromFile(ctx context.Context, objectKey, filePath string) error {
	_, err := s.client.FPutObject(ctx, s.bucketName, objectKey, filePath, minio.PutObjectOptions{
		ContentType: contentTypeFor(filePath),
	})
	if err != nil {
		metrics.RecordStorageOperation("upload", "error", 0)
		return fmt.Errorf("failed to upload file: %w", err)
	}

	info, err := os.Stat(filePath)
	if err == nil {
		metrics.RecordStorageOperation("upload", "success", info.Size())
	}
	return nil
}

// DeleteOriginal removes an original from storage
func (s *Storage) DeleteOriginal(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// PresignedURL returns a time-limited download URL for an original
func (s *Storage) PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// ListOriginals lists object keys with a prefix
func (s *Storage) ListOriginals(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// contentTypeFor returns the content type for an object key or file path
func contentTypeFor(name string) string {
	ext := filepath.Ext(name)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".flac":
		return "audio/flac"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}
