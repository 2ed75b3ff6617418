// Package memory keeps archived documents in memory for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// BlobStore stores documents in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// Upload reads the local file and keeps a copy under name.
func (s *BlobStore) Upload(_ context.Context, localPath string, name string) (string, error) {
	// #nosec G304 -- localPath comes from the archiver output dir.
	byteData, err := os.ReadFile(localPath)
	if err != nil {
		return "", &archiver.UploadError{Name: name, Err: fmt.Errorf("failed to read %s: %w", localPath, err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = byteData
	return fmt.Sprintf("memory://%s", name), nil
}

// Object returns a copy of a stored document.
func (s *BlobStore) Object(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Names lists the stored document names in sorted order.
func (s *BlobStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
