package archiver

import (
	"context"
	"time"
)

// StateStore persists the ProcessedSet between runs.
type StateStore interface {
	Load(ctx context.Context) (ProcessedSet, error)
	Save(ctx context.Context, set ProcessedSet) error
}

// ListingFetcher retrieves the listing page and returns candidate links in document order.
type ListingFetcher interface {
	FetchCandidates(ctx context.Context, listingURL string) ([]Candidate, error)
}

// Downloader streams a remote document to a local path.
type Downloader interface {
	Download(ctx context.Context, url string, destPath string) error
}

// Uploader stores a local file under remoteName and returns a URI for it.
type Uploader interface {
	Upload(ctx context.Context, localPath string, remoteName string) (string, error)
}

// FileHasher digests a downloaded file.
type FileHasher interface {
	HashFile(path string) (string, error)
}

// Notifier announces archived documents to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, event ArchivedEvent) error
}

// Pacer spaces out successive requests to the same source.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Observer receives run counters, typically backed by Prometheus.
type Observer interface {
	ObserveCandidates(n int)
	ObserveSkipped()
	ObserveArchived()
	ObserveFailed(stage Stage)
	ObserveRunComplete(at time.Time)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
