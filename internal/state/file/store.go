// Package file persists the processed set as a JSON array on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Store reads and writes a JSON array of URL strings.
type Store struct {
	path string
}

// New returns a Store backed by path.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state file path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored set, or an empty set when the file does not exist yet.
func (s *Store) Load(_ context.Context) (archiver.ProcessedSet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return archiver.NewProcessedSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", s.path, err)
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, &archiver.StateCorruptionError{Source: s.path, Err: err}
	}
	return archiver.NewProcessedSet(urls...), nil
}

// Save overwrites the file with the sorted URLs. The data is written to a sibling temp
// file and renamed into place.
func (s *Store) Save(_ context.Context, set archiver.ProcessedSet) error {
	payload, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state %s: %w", s.path, err)
	}
	return nil
}
