package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

var testKeywords = []string{"draft", "drhp", "red-herring", "red herring", "offer document"}

const listingHTML = `<html><body>
<a href="/sebi_data/attachdocs/acme-drhp.pdf">Acme Ltd - Draft Red Herring Prospectus</a>
<a href="/sebi_data/attachdocs/annual.pdf">Annual report</a>
<a href="https://cdn.example.org/files/beta.PDF?v=2">Beta Offer Document</a>
<a href="/filings/draft-list.html">Draft filings index</a>
<a href="docs/gamma_rhp.pdf">  Gamma
   Red   Herring </a>
</body></html>`

func TestFetchCandidates(t *testing.T) {
	t.Parallel()

	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingHTML))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{
		UserAgent: "drhp-downloader/1.0",
		Headers:   map[string]string{"Accept-Language": "en"},
		Timeout:   5 * time.Second,
		Extension: ".pdf",
		Keywords:  testKeywords,
	}, nil)

	listing := srv.URL + "/filings/public-issues.html"
	got, err := f.FetchCandidates(context.Background(), listing)
	require.NoError(t, err)
	assert.Equal(t, "drhp-downloader/1.0", gotUA)
	assert.Equal(t, "en", gotHeader)

	require.Len(t, got, 3)
	assert.Equal(t, srv.URL+"/sebi_data/attachdocs/acme-drhp.pdf", got[0].URL)
	assert.Equal(t, "Acme Ltd - Draft Red Herring Prospectus", got[0].Text)
	assert.Equal(t, "https://cdn.example.org/files/beta.PDF?v=2", got[1].URL)
	assert.Equal(t, srv.URL+"/filings/docs/gamma_rhp.pdf", got[2].URL)
	assert.Equal(t, "Gamma Red Herring", got[2].Text)

	again, err := f.FetchCandidates(context.Background(), listing)
	require.NoError(t, err, "repeat fetches of the same page must be allowed")
	assert.Equal(t, got, again)
}

func TestFetchCandidatesNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Extension: ".pdf", Keywords: testKeywords}, nil)
	_, err := f.FetchCandidates(context.Background(), srv.URL)
	var netErr *archiver.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
}

func TestFetchCandidatesLargePage(t *testing.T) {
	t.Parallel()

	padding := strings.Repeat("<p>filler paragraph for a long listing</p>\n", (11<<20)/40)
	page := "<html><body>" + padding +
		`<a href="/sebi_data/attachdocs/late-drhp.pdf">Late Draft Red Herring Prospectus</a></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: 10 * time.Second, Extension: ".pdf", Keywords: testKeywords}, nil)
	got, err := f.FetchCandidates(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, srv.URL+"/sebi_data/attachdocs/late-drhp.pdf", got[0].URL)
}

func TestFetchCandidatesNonAuthoritativeStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte(listingHTML))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Extension: ".pdf", Keywords: testKeywords}, nil)
	got, err := f.FetchCandidates(context.Background(), srv.URL+"/filings/public-issues.html")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFetchCandidatesUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second, Extension: ".pdf", Keywords: testKeywords}, nil)
	_, err := f.FetchCandidates(context.Background(), addr)
	var netErr *archiver.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}

func TestFetchCandidatesCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(listingHTML))
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(Config{Extension: ".pdf", Keywords: testKeywords}, nil)
	_, err := f.FetchCandidates(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildCollectorAppliesConfig(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second}, nil)
	collector := f.buildCollector(&pageResult{}, new(error))
	assert.Equal(t, "coverage-agent", collector.UserAgent)
	assert.True(t, collector.AllowURLRevisit)
	assert.True(t, collector.ParseHTTPErrorResponse)
	assert.Zero(t, collector.MaxBodySize)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: map[string]string{"X-Trace": "yes"}}, nil)
	var page pageResult
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &page, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	body := []byte("<html></html>")
	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: body})
	assert.Equal(t, http.StatusOK, page.statusCode)
	body[0] = 'X'
	assert.Equal(t, "<html></html>", string(page.body), "body must be copied")

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	assert.Equal(t, http.StatusNotFound, page.statusCode)
	require.EqualError(t, fetchErr, "Not Found")
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
