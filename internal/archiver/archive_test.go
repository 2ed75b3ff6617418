package archiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArchiverValidates(t *testing.T) {
	t.Parallel()

	_, err := NewArchiver("", &fileDownloader{}, newRecordingUploader(), nil)
	require.Error(t, err)
	_, err = NewArchiver(t.TempDir(), nil, newRecordingUploader(), nil)
	require.Error(t, err)
	_, err = NewArchiver(t.TempDir(), &fileDownloader{}, nil, nil)
	require.Error(t, err)
}

func TestNewArchiverCreatesOutputDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "drhps")
	_, err := NewArchiver(dir, &fileDownloader{}, newRecordingUploader(), nil)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestArchiveSuccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	up := newRecordingUploader()
	a, err := NewArchiver(dir, &fileDownloader{}, up, nil)
	require.NoError(t, err)

	url := "https://example.com/drhp/offer.pdf"
	res := a.Archive(context.Background(), Candidate{URL: url})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)

	name := DeriveFilename(url)
	assert.Equal(t, filepath.Join(dir, name), res.Record.LocalPath)
	assert.Equal(t, name, res.Record.RemoteName)
	assert.Equal(t, "memory://"+name, res.Record.RemoteURI)
	assert.Equal(t, []byte("%PDF-1.4 "+url), up.objects[name])
}

func TestArchiveDownloadFailure(t *testing.T) {
	t.Parallel()

	url := "https://example.com/drhp/missing.pdf"
	dl := &fileDownloader{fail: map[string]error{url: &NetworkError{URL: url, StatusCode: 404}}}
	up := newRecordingUploader()
	a, err := NewArchiver(t.TempDir(), dl, up, nil)
	require.NoError(t, err)

	res := a.Archive(context.Background(), Candidate{URL: url})
	require.False(t, res.OK())
	assert.Equal(t, StageDownload, res.Stage)
	var netErr *NetworkError
	require.ErrorAs(t, res.Err, &netErr)
	assert.Equal(t, 404, netErr.StatusCode)
	assert.Empty(t, up.objects)
}

func TestArchiveUploadFailureIsWrapped(t *testing.T) {
	t.Parallel()

	url := "https://example.com/drhp/offer.pdf"
	up := newRecordingUploader()
	up.fail = map[string]error{DeriveFilename(url): errors.New("403 forbidden")}
	a, err := NewArchiver(t.TempDir(), &fileDownloader{}, up, nil)
	require.NoError(t, err)

	res := a.Archive(context.Background(), Candidate{URL: url})
	require.False(t, res.OK())
	assert.Equal(t, StageUpload, res.Stage)
	var upErr *UploadError
	require.ErrorAs(t, res.Err, &upErr)
	assert.Equal(t, DeriveFilename(url), upErr.Name)
}

type stubHasher struct {
	sum string
	err error
}

func (h stubHasher) HashFile(string) (string, error) { return h.sum, h.err }

func TestArchiveRecordsChecksum(t *testing.T) {
	t.Parallel()

	a, err := NewArchiver(t.TempDir(), &fileDownloader{}, newRecordingUploader(), nil, WithHasher(stubHasher{sum: "deadbeef"}))
	require.NoError(t, err)

	res := a.Archive(context.Background(), Candidate{URL: "https://example.com/a/drhp.pdf"})
	require.True(t, res.OK())
	assert.Equal(t, "deadbeef", res.Record.SHA256)
}

func TestArchiveChecksumFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	a, err := NewArchiver(t.TempDir(), &fileDownloader{}, newRecordingUploader(), nil, WithHasher(stubHasher{err: errors.New("io")}))
	require.NoError(t, err)

	res := a.Archive(context.Background(), Candidate{URL: "https://example.com/a/drhp.pdf"})
	require.True(t, res.OK())
	assert.Empty(t, res.Record.SHA256)
}
