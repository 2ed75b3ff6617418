// Package httpfetcher streams documents to disk with net/http.
package httpfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// ChunkSize is the copy buffer size; memory use stays constant regardless of document size.
const ChunkSize = 8192

// Config controls request headers, timeouts, and progress output.
type Config struct {
	UserAgent string
	Headers   map[string]string
	// Timeout bounds connecting, waiting for response headers, and each gap between
	// body reads. A large body that keeps flowing is not cut off.
	Timeout time.Duration
	// Progress, when non-nil, receives a byte progress bar for each download.
	Progress io.Writer
}

// Downloader implements archiver.Downloader.
type Downloader struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Downloader.
func New(cfg Config, logger *zap.Logger) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		cfg:    cfg,
		client: &http.Client{Transport: newHTTPTransport(cfg.Timeout)},
		logger: logger,
	}
}

// Download streams url into destPath. Non-2xx responses and transport failures return
// an *archiver.NetworkError; a partially written file is removed.
func (d *Downloader) Download(ctx context.Context, url string, destPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &archiver.NetworkError{URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	for k, v := range d.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &archiver.NetworkError{URL: url, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			d.logger.Debug("close response body", zap.String("url", url), zap.Error(cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &archiver.NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body := newIdleReader(resp.Body, d.cfg.Timeout, cancel)
	defer body.stop()

	written, err := d.writeBody(resp, body, destPath)
	if err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			d.logger.Warn("remove partial download", zap.String("path", destPath), zap.Error(rmErr))
		}
		return err
	}
	d.logger.Debug("download complete", zap.String("url", url), zap.Int64("bytes", written))
	return nil
}

func (d *Downloader) writeBody(resp *http.Response, body *idleReader, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}
	// #nosec G304 -- destPath is derived from the configured output dir.
	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", destPath, err)
	}

	writers := []io.Writer{f}
	var bar *progressbar.ProgressBar
	if d.cfg.Progress != nil {
		bar = d.progressBar(resp.ContentLength, filepath.Base(destPath))
		writers = append(writers, bar)
	}
	// MultiWriter hides ReadFrom, so the copy always goes through the fixed-size buffer.
	written, copyErr := io.CopyBuffer(io.MultiWriter(writers...), body, make([]byte, ChunkSize))
	if bar != nil && copyErr == nil {
		_ = bar.Finish()
	}
	closeErr := f.Close()
	if copyErr != nil {
		if body.expired() {
			copyErr = fmt.Errorf("no data for %s: %w", d.cfg.Timeout, copyErr)
		}
		return written, &archiver.NetworkError{URL: resp.Request.URL.String(), Err: fmt.Errorf("read body: %w", copyErr)}
	}
	if closeErr != nil {
		return written, fmt.Errorf("close %s: %w", destPath, closeErr)
	}
	return written, nil
}

func (d *Downloader) progressBar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(d.cfg.Progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(d.cfg.Progress)
		}),
	)
}

// idleReader cancels the request when no bytes arrive within timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.fired.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && !ir.fired.Load() {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) expired() bool {
	return ir.fired.Load()
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}

func newHTTPTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
