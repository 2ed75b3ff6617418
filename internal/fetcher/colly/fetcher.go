// Package collyfetcher implements archiver.ListingFetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Config controls collector behavior and candidate matching.
type Config struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	Extension string
	Keywords  []string
}

// Fetcher retrieves the listing page with Colly and extracts candidate links.
type Fetcher struct {
	cfg           Config
	matcher       Matcher
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type pageResult struct {
	body       []byte
	statusCode int
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		matcher:       NewMatcher(cfg.Extension, cfg.Keywords),
		baseCollector: c,
		logger:        logger,
	}
}

// FetchCandidates downloads the listing page and returns matching links in document order.
func (f *Fetcher) FetchCandidates(ctx context.Context, listingURL string) ([]archiver.Candidate, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, &archiver.NetworkError{URL: listingURL, Err: fmt.Errorf("parse listing url: %w", err)}
	}

	var (
		page     pageResult
		fetchErr error
	)
	collector := f.buildCollector(&page, &fetchErr)
	if err := f.runCollector(ctx, collector, listingURL, &page, &fetchErr); err != nil {
		return nil, err
	}
	f.logger.Debug("listing fetched",
		zap.String("url", listingURL),
		zap.Int("status_code", page.statusCode),
		zap.Int("bytes", len(page.body)),
	)

	candidates, err := ExtractCandidates(base, bytes.NewReader(page.body), f.matcher)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", listingURL, err)
	}
	return candidates, nil
}

func (f *Fetcher) buildCollector(page *pageResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	// Listing pages can exceed colly's 10 MiB default; a truncated page would silently
	// drop the links near its end.
	collector.MaxBodySize = 0
	// colly reports 203-299 as errors by default. Every status reaches OnResponse and
	// runCollector decides what counts as success.
	collector.ParseHTTPErrorResponse = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	f.configureCollectorHooks(collector, page, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, page *pageResult, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		page.statusCode = r.StatusCode
		page.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.statusCode = r.StatusCode
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	listingURL string,
	page *pageResult,
	fetchErr *error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(listingURL)
	}()

	select {
	case <-ctx.Done():
		return &archiver.NetworkError{URL: listingURL, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if *fetchErr != nil {
			err = *fetchErr
		}
		if err == nil && (page.statusCode < 200 || page.statusCode > 299) {
			err = fmt.Errorf("unexpected status")
		}
		if err != nil {
			netErr := &archiver.NetworkError{URL: listingURL, Err: err}
			if page.statusCode >= 300 {
				netErr.StatusCode = page.statusCode
			}
			return netErr
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	for key, value := range f.cfg.Headers {
		r.Headers.Set(key, value)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
