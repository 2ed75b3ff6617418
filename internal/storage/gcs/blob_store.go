// Package gcs archives documents to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	blobstorage "github.com/JakeFAU/drhp-archiver/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore writes documents to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewClient creates a storage client with the given options (typically credentials).
func NewClient(ctx context.Context, opts ...option.ClientOption) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return client, nil
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, &archiver.ConfigError{Field: "storage.bucket", Err: fmt.Errorf("bucket name is required")}
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Close releases the client.
func (s *BlobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}

// Upload streams the local file into the bucket and returns a gs:// URI.
func (s *BlobStore) Upload(ctx context.Context, localPath string, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("object name is required")}
	}
	f, _, err := blobstorage.OpenLocal(localPath)
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}
	defer func() { _ = f.Close() }()

	key := blobstorage.ObjectKey(s.prefix, name)
	// Canceling the writer's context abandons the upload; Close alone would commit
	// whatever was written so far.
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(writeCtx)
	writer.ContentType = blobstorage.ContentType(name)
	if _, err := io.Copy(writer, f); err != nil {
		cancel()
		_ = writer.Close()
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("copy object: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("close writer: %w", err)}
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
