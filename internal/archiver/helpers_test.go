package archiver

import (
	"context"
	"crypto/sha1" //nolint:gosec // test mirrors production naming
	"encoding/hex"
	"errors"
	"os"
	"sync"
	"testing"
)

func hashPrefix(t *testing.T, s string) string {
	t.Helper()
	sum := sha1.Sum([]byte(s)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])[:8]
}

type memoryState struct {
	mu      sync.Mutex
	urls    []string
	loadErr error
	saveErr error
	saves   int
}

func (m *memoryState) Load(context.Context) (ProcessedSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return NewProcessedSet(m.urls...), nil
}

func (m *memoryState) Save(_ context.Context, set ProcessedSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.urls = set.Sorted()
	return nil
}

type staticListing struct {
	candidates []Candidate
	err        error
}

func (s staticListing) FetchCandidates(context.Context, string) ([]Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]Candidate(nil), s.candidates...), nil
}

type fileDownloader struct {
	mu     sync.Mutex
	fail   map[string]error
	called []string
}

func (d *fileDownloader) Download(_ context.Context, url string, dest string) error {
	d.mu.Lock()
	d.called = append(d.called, url)
	err := d.fail[url]
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("%PDF-1.4 "+url), 0o600)
}

func (d *fileDownloader) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.called...)
}

type recordingUploader struct {
	mu      sync.Mutex
	fail    map[string]error
	objects map[string][]byte
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{objects: make(map[string][]byte)}
}

func (u *recordingUploader) Upload(_ context.Context, localPath string, name string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail[name]; err != nil {
		return "", err
	}
	data, err := os.ReadFile(localPath) //nolint:gosec // test temp dir
	if err != nil {
		return "", err
	}
	u.objects[name] = data
	return "memory://" + name, nil
}

type stubNotifier struct {
	events []ArchivedEvent
	err    error
}

func (n *stubNotifier) Notify(_ context.Context, event ArchivedEvent) error {
	n.events = append(n.events, event)
	return n.err
}

type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(context.Context, string) error {
	p.waits++
	return p.err
}

type fixedIDs struct{}

func (fixedIDs) NewID() (string, error) { return "run-1", nil }

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }
