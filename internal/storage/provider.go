// Package storage holds the remote archive backends. Each subpackage implements
// archiver.Uploader, so the pipeline is independent of where documents end up
// (Google Drive, Google Cloud Storage, S3, a local directory, or memory).
package storage

import (
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Backend names accepted in storage.backend.
const (
	BackendDrive  = "drive"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// OpenLocal opens a downloaded file for upload and reports its size.
func OpenLocal(localPath string) (*os.File, int64, error) {
	// #nosec G304 -- localPath comes from the archiver output dir.
	f, err := os.Open(localPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	return f, info.Size(), nil
}

// ContentType guesses a MIME type from the remote name.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey joins an optional prefix and a name into an object key.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
