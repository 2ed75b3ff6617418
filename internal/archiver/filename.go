package archiver

import (
	"crypto/sha1" //nolint:gosec // used for naming, not integrity
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	filenameHashLen = 8
	fallbackName    = "drhp.pdf"
)

// DeriveFilename maps a document URL to a stable archive name: a short hash of the
// full URL followed by the URL's base filename. Equal URLs always map to the same name.
func DeriveFilename(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL)) //nolint:gosec // see import
	prefix := hex.EncodeToString(sum[:])[:filenameHashLen]
	return prefix + "_" + baseName(rawURL)
}

func baseName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		// Keep percent-escapes so names match the ones already in the archive.
		p = u.EscapedPath()
	}
	p, _, _ = strings.Cut(p, "?")
	name := p[strings.LastIndex(p, "/")+1:]
	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}
