// Package ratelimit paces requests per source host with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DelayObserver is notified when Wait actually blocked.
type DelayObserver func(host string, delay time.Duration)

// Limiter manages per-host limits.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval rate.Limit
	burst    int
	observe  DelayObserver
}

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the minimum spacing between requests to one host. Zero disables pacing.
	Interval time.Duration
	// Burst defaults to 1.
	Burst int
	// OnDelay is optional.
	OnDelay DelayObserver
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Every(cfg.Interval)
	if cfg.Interval <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		interval: r,
		burst:    burst,
		observe:  cfg.OnDelay,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.interval, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens that were available immediately are not reported.
	if delay := time.Since(start); delay > time.Millisecond && l.observe != nil {
		l.observe(host, delay)
	}
	return nil
}
