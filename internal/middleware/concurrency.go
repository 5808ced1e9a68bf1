package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/harliandi/go-convert/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// ConcurrencyLimiter limits the number of concurrent requests
type ConcurrencyLimiter struct {
	semaphore chan struct{}
	active    atomic.Int64
	max       int
}

// NewConcurrencyLimiter creates a new concurrency limiter
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max < 1 {
		max = 1
	}
	return &ConcurrencyLimiter{
		semaphore: make(chan struct{}, max),
		max:       max,
	}
}

// Acquire tries to acquire a slot. Returns false if limit is reached
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.semaphore <- struct{}{}:
		metrics.UpdateConcurrency(int(cl.active.Add(1)))
		return true
	default:
		return false
	}
}

// Release releases a slot
func (cl *ConcurrencyLimiter) Release() {
	<-cl.semaphore
	metrics.UpdateConcurrency(int(cl.active.Add(-1)))
}

// Active returns the number of held slots
func (cl *ConcurrencyLimiter) Active() int {
	return int(cl.active.Load())
}

// ConcurrencyLimit returns middleware that enforces concurrency limits
func ConcurrencyLimit(max int, logger *logrus.Logger) func(http.Handler) http.Handler {
	cl := NewConcurrencyLimiter(max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Acquire() {
				logger.WithField("max", cl.max).Warn("Concurrency limit reached")
				metrics.RecordConcurrencyLimitExceeded()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"Service busy, please try again"}`))
				return
			}

			defer cl.Release()
			next.ServeHTTP(w, r)
		})
	}
}
