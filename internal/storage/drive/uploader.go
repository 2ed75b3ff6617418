// Package drive archives documents into a Google Drive folder.
package drive

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	blobstorage "github.com/JakeFAU/drhp-archiver/internal/storage"
)

// Scope is the OAuth scope needed to create files the service account owns.
const Scope = drive.DriveFileScope

// Config names the destination folder.
type Config struct {
	FolderID string
}

// Uploader creates files in a Drive folder.
type Uploader struct {
	files    *drive.FilesService
	folderID string
}

// New builds a Drive service from the client options (credentials or a test endpoint).
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Uploader, error) {
	if strings.TrimSpace(cfg.FolderID) == "" {
		return nil, &archiver.ConfigError{Field: "storage.folder_id", Err: fmt.Errorf("folder id is required")}
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Uploader{files: svc.Files, folderID: cfg.FolderID}, nil
}

// Upload creates a file titled name under the folder. The returned URI is the
// web view link when Drive provides one, otherwise gdrive://<file id>.
func (u *Uploader) Upload(ctx context.Context, localPath string, name string) (string, error) {
	f, _, err := blobstorage.OpenLocal(localPath)
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}
	defer func() { _ = f.Close() }()

	meta := &drive.File{
		Name:    name,
		Parents: []string{u.folderID},
	}
	created, err := u.files.Create(meta).
		Media(f, googleapi.ContentType(blobstorage.ContentType(name))).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: err}
	}
	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return "gdrive://" + created.Id, nil
}
