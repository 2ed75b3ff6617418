// Package api hosts the optional HTTP status server of the scheduler. Routes:
//   - GET /healthz and /readyz for probes; readyz fails while state cannot be loaded.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/state lists processed URLs.
//   - GET /v1/runs/last and POST /v1/runs report on and start archive runs.
package api
