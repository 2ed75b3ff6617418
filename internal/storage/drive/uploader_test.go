package drive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

func newTestUploader(t *testing.T, handler http.Handler) *Uploader {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	up, err := New(context.Background(), Config{FolderID: "folder-123"},
		option.WithEndpoint(server.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	return up
}

func writeTemp(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestNewRequiresFolder(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{}, option.WithoutAuthentication())
	var cfgErr *archiver.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "storage.folder_id", cfgErr.Field)
}

func TestUpload(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/upload/drive/v3/files")
		assert.Equal(t, "true", r.URL.Query().Get("supportsAllDrives"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		// Multipart body carries the metadata part then the media part.
		assert.Contains(t, string(body), `"name":"1a2b3c4d_offer.pdf"`)
		assert.Contains(t, string(body), `"parents":["folder-123"]`)
		assert.Contains(t, string(body), "%PDF-1.4 body")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"file-42","webViewLink":"https://drive.google.com/file/d/file-42/view"}`)
	})
	up := newTestUploader(t, handler)

	uri, err := up.Upload(context.Background(), writeTemp(t, "%PDF-1.4 body"), "1a2b3c4d_offer.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/file-42/view", uri)
}

func TestUploadWithoutLink(t *testing.T) {
	t.Parallel()

	up := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"file-7"}`)
	}))

	uri, err := up.Upload(context.Background(), writeTemp(t, "x"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "gdrive://file-7", uri)
}

func TestUploadRejected(t *testing.T) {
	t.Parallel()

	up := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"insufficient permissions"}}`)
	}))

	_, err := up.Upload(context.Background(), writeTemp(t, "x"), "a.pdf")
	var upErr *archiver.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "a.pdf", upErr.Name)
	assert.Contains(t, err.Error(), "insufficient permissions")
}
