package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/harliandi/go-convert/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Logger returns middleware that logs HTTP requests and records metrics
func Logger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWrapper{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrapped.status,
				"duration": duration,
				"bytes":    wrapped.bytes,
			}).Info("request")

			// Record metrics (excluding /metrics endpoint to avoid recursion)
			if r.URL.Path != "/metrics" {
				metrics.RecordRequest(r.Method, endpointLabel(r.URL.Path), fmt.Sprintf("%d", wrapped.status), duration.Seconds())
			}
		})
	}
}

// Recovery returns middleware that recovers from panics and returns HTTP 500
func Recovery(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithFields(logrus.Fields{
						"panic": err,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					}).Error("PANIC recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprintf(w, `{"error":"Internal server error"}`)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// knownEndpoints are the routes reported under their own metric label
var knownEndpoints = map[string]bool{
	"/image-tools/compress": true,
	"/image-tools/resize":   true,
	"/health":               true,
	"/metrics":              true,
}

// endpointLabel keeps per-file download paths and unknown paths from
// exploding metric cardinality
func endpointLabel(path string) string {
	const download = "/download/"
	switch {
	case strings.HasPrefix(path, download) && len(path) > len(download):
		return download
	case knownEndpoints[path]:
		return path
	default:
		return "other"
	}
}

type responseWrapper struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWrapper) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *responseWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
