package collyfetcher

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Matcher decides whether a link points at a filing document.
type Matcher struct {
	extension string
	keywords  []string
}

// NewMatcher lower-cases the extension and keywords once so matching is case-insensitive.
func NewMatcher(extension string, keywords []string) Matcher {
	ext := strings.ToLower(strings.TrimSpace(extension))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	return Matcher{extension: ext, keywords: kws}
}

// HasExtension reports whether the resolved URL ends with the document extension or
// carries it right before a query string.
func (m Matcher) HasExtension(resolved string) bool {
	if m.extension == "" {
		return false
	}
	lower := strings.ToLower(resolved)
	return strings.HasSuffix(lower, m.extension) || strings.Contains(lower, m.extension+"?")
}

// HasKeyword reports whether text contains any configured keyword.
func (m Matcher) HasKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range m.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Match applies both predicates. haystack is the anchor text joined with the raw href.
func (m Matcher) Match(resolved, haystack string) bool {
	return m.HasExtension(resolved) && m.HasKeyword(haystack)
}

// ExtractCandidates walks every a[href] in body, resolving targets against base.
func ExtractCandidates(base *url.URL, body io.Reader, m Matcher) ([]archiver.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []archiver.Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		text := anchorText(s)
		if m.Match(resolved, text+" "+href) {
			out = append(out, archiver.Candidate{URL: resolved, Text: text})
		}
	})
	return out, nil
}

// anchorText joins the text nodes under s with single spaces, so adjacent elements
// such as <span>Red</span><span>Herring</span> stay separate words.
func anchorText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				parts = append(parts, c.Text())
				return
			}
			walk(c)
		})
	}
	walk(s)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
