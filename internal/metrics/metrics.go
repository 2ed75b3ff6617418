// Package metrics exposes Prometheus collectors for archive runs.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

// Recorder implements archiver.Observer on top of a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	candidatesTotal     prometheus.Counter
	archivedTotal       prometheus.Counter
	skippedTotal        prometheus.Counter
	failedTotal         *prometheus.CounterVec
	lastSuccess         prometheus.Gauge
	pacingDelaysSeconds *prometheus.HistogramVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		candidatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "drhp_candidates_total",
			Help: "Total number of candidate links discovered on the listing page.",
		}),
		archivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "drhp_archived_total",
			Help: "Total number of documents downloaded and uploaded.",
		}),
		skippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "drhp_skipped_total",
			Help: "Total number of candidates skipped because they were already processed.",
		}),
		failedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "drhp_failed_total",
			Help: "Total number of failed archive attempts, labeled by stage.",
		}, []string{"stage"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "drhp_last_success_timestamp_seconds",
			Help: "Unix time of the last run that saved its state.",
		}),
		pacingDelaysSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drhp_pacing_delay_seconds",
			Help:    "Histogram of pacing wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"host"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of status server requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpRequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of status server latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCandidates adds n discovered candidates.
func (r *Recorder) ObserveCandidates(n int) {
	r.candidatesTotal.Add(float64(n))
}

// ObserveSkipped counts one already-processed candidate.
func (r *Recorder) ObserveSkipped() {
	r.skippedTotal.Inc()
}

// ObserveArchived counts one archived document.
func (r *Recorder) ObserveArchived() {
	r.archivedTotal.Inc()
}

// ObserveFailed counts one failure at the given stage.
func (r *Recorder) ObserveFailed(stage archiver.Stage) {
	r.failedTotal.WithLabelValues(string(stage)).Inc()
}

// ObserveRunComplete stamps the last successful run.
func (r *Recorder) ObserveRunComplete(at time.Time) {
	r.lastSuccess.Set(float64(at.Unix()))
}

// ObservePacingDelay records the duration of a pacing wait.
func (r *Recorder) ObservePacingDelay(host string, delay time.Duration) {
	r.pacingDelaysSeconds.WithLabelValues(SanitizeSite(host)).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the status server request metrics.
func (r *Recorder) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	r.httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
