// Package middleware provides HTTP middleware shared by the status server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Recorder receives one observation per served request.
type Recorder interface {
	ObserveHTTPRequest(method, route string, code int, duration time.Duration)
}

// Metrics is a chi middleware that records HTTP request metrics by route pattern.
func Metrics(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := WrapResponseWriter(w)
			next.ServeHTTP(ww, r)

			routePattern := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				routePattern = rctx.RoutePattern()
			}
			rec.ObserveHTTPRequest(r.Method, routePattern, ww.Status(), time.Since(start))
		})
	}
}

// ResponseWriter remembers the status code written through it.
type ResponseWriter struct {
	http.ResponseWriter
	status int
}

// WrapResponseWriter wraps w; the status defaults to 200.
func WrapResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records code before delegating.
func (rw *ResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Status returns the recorded status code.
func (rw *ResponseWriter) Status() int {
	return rw.status
}
