package archiver

import (
	"sort"
	"time"
)

// Candidate is a document link discovered on the listing page.
type Candidate struct {
	URL  string
	Text string
}

// ProcessedSet records URLs that were archived by a previous run.
type ProcessedSet map[string]struct{}

// NewProcessedSet builds a set from the provided URLs.
func NewProcessedSet(urls ...string) ProcessedSet {
	set := make(ProcessedSet, len(urls))
	for _, u := range urls {
		set.Add(u)
	}
	return set
}

// Add inserts url. Adding an existing URL is a no-op.
func (s ProcessedSet) Add(url string) {
	s[url] = struct{}{}
}

// Remove drops url so the next run archives it again. It reports whether url was present.
func (s ProcessedSet) Remove(url string) bool {
	if _, ok := s[url]; !ok {
		return false
	}
	delete(s, url)
	return true
}

// Has reports whether url was already archived.
func (s ProcessedSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Len returns the number of URLs in the set.
func (s ProcessedSet) Len() int {
	return len(s)
}

// Sorted returns the URLs in lexical order.
func (s ProcessedSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Stage names the step of the archive pipeline that produced a result.
type Stage string

// Archive pipeline stages.
const (
	StageDownload Stage = "download"
	StageUpload   Stage = "upload"
)

// Record pairs a source URL with its local copy and remote location.
type Record struct {
	URL        string
	LocalPath  string
	RemoteName string
	RemoteURI  string
	// SHA256 is the hex digest of the downloaded file, empty when no hasher is configured.
	SHA256 string
}

// Result is the outcome of archiving one candidate.
type Result struct {
	Record Record
	Stage  Stage
	Err    error
}

// OK reports whether both download and upload succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Summary reports what a single run did.
type Summary struct {
	RunID      string
	Candidates int
	Skipped    int
	Archived   int
	Failed     int
}

// ArchivedEvent is published after a document is archived.
type ArchivedEvent struct {
	RunID      string    `json:"run_id"`
	URL        string    `json:"url"`
	RemoteName string    `json:"remote_name"`
	RemoteURI  string    `json:"remote_uri"`
	SHA256     string    `json:"sha256,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}
