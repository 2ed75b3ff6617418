// Package local archives documents into a directory on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	blobstorage "github.com/JakeFAU/drhp-archiver/internal/storage"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where archived documents are copied.
	BaseDir string
}

// BlobStore copies documents into a base directory.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, &archiver.ConfigError{Field: "storage.local_dir", Err: fmt.Errorf("base directory is required")}
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, &archiver.ConfigError{Field: "storage.local_dir", Err: fmt.Errorf("%s is not a directory", cfg.BaseDir)}
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// Upload copies the local file into the base directory and returns a file:// URI.
func (s *BlobStore) Upload(ctx context.Context, localPath string, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("name is required")}
	}
	if err := ctx.Err(); err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}

	fullPath := filepath.Join(s.baseDir, name)

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("path traversal detected")}
	}

	src, _, err := blobstorage.OpenLocal(localPath)
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}
	defer func() { _ = src.Close() }()

	// #nosec G304 -- cleanFullPath is confined to baseDir above.
	dst, err := os.Create(cleanFullPath)
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("failed to copy file: %w", err)}
	}
	if err := dst.Close(); err != nil {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("failed to close file: %w", err)}
	}

	return fmt.Sprintf("file://%s", cleanFullPath), nil
}
