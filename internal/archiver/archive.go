package archiver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Archiver downloads a candidate to the output directory and uploads it remotely.
type Archiver struct {
	outputDir  string
	downloader Downloader
	uploader   Uploader
	hasher     FileHasher
	logger     *zap.Logger
}

// ArchiverOption customizes an Archiver.
type ArchiverOption func(*Archiver)

// WithHasher records a digest of every downloaded file.
func WithHasher(h FileHasher) ArchiverOption {
	return func(a *Archiver) {
		a.hasher = h
	}
}

// NewArchiver returns an Archiver rooted at outputDir, creating the directory if needed.
func NewArchiver(outputDir string, downloader Downloader, uploader Uploader, logger *zap.Logger, opts ...ArchiverOption) (*Archiver, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	if downloader == nil {
		return nil, errors.New("downloader is required")
	}
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}
	a := &Archiver{
		outputDir:  outputDir,
		downloader: downloader,
		uploader:   uploader,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Archive downloads and then uploads a single candidate. Failures are reported in the
// returned Result rather than as an error so the caller can continue with the next item.
func (a *Archiver) Archive(ctx context.Context, candidate Candidate) Result {
	name := DeriveFilename(candidate.URL)
	rec := Record{
		URL:        candidate.URL,
		LocalPath:  filepath.Join(a.outputDir, name),
		RemoteName: name,
	}

	a.logger.Info("downloading", zap.String("url", rec.URL))
	if err := a.downloader.Download(ctx, rec.URL, rec.LocalPath); err != nil {
		return Result{Record: rec, Stage: StageDownload, Err: err}
	}
	a.logger.Info("saved", zap.String("path", rec.LocalPath))
	if a.hasher != nil {
		// A digest is informational; the document is still archived without one.
		sum, err := a.hasher.HashFile(rec.LocalPath)
		if err != nil {
			a.logger.Warn("checksum failed", zap.String("path", rec.LocalPath), zap.Error(err))
		} else {
			rec.SHA256 = sum
		}
	}

	uri, err := a.uploader.Upload(ctx, rec.LocalPath, rec.RemoteName)
	if err != nil {
		var upErr *UploadError
		if !errors.As(err, &upErr) {
			err = &UploadError{Name: rec.RemoteName, Err: err}
		}
		return Result{Record: rec, Stage: StageUpload, Err: err}
	}
	rec.RemoteURI = uri
	a.logger.Info("uploaded", zap.String("name", rec.RemoteName), zap.String("uri", uri))
	return Result{Record: rec, Stage: StageUpload}
}
