package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harliandi/go-convert/pkg/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*client
	rate   rate.Limit
	burst  int
	ttl    time.Duration // idle time before a client is forgotten
	stop   chan struct{}
	once   sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
// perSec: requests per second allowed
// burst: maximum burst size (tokens can accumulate to this)
func NewRateLimiter(perSec, burst int) *RateLimiter {
	rl := &RateLimiter{
		limits: make(map[string]*client),
		rate:   rate.Limit(perSec),
		burst:  burst,
		ttl:    5 * time.Minute,
		stop:   make(chan struct{}),
	}

	go rl.cleanup(time.Minute)

	return rl
}

// Allow checks if a request from the given IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	c, exists := rl.limits[ip]
	if !exists {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limits[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes stale entries to prevent memory leaks
func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, c := range rl.limits {
		if now.Sub(c.lastSeen) > rl.ttl {
			delete(rl.limits, ip)
		}
	}
}

// getIP extracts the client IP from the request. Forwarding headers are
// only honoured when trustProxy is set; otherwise any client could rotate
// them to dodge its limit.
func getIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// Check X-Forwarded-For header (for proxies/load balancers)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getIPPrefix extracts the first octet of an IP for privacy-preserving metrics
func getIPPrefix(ip string) string {
	if idx := strings.Index(ip, "."); idx != -1 {
		return ip[:idx] + ".0.0.0"
	}
	// For IPv6, just return first group
	if idx := strings.Index(ip, ":"); idx != -1 {
		return ip[:idx] + ":"
	}
	return "unknown"
}

// RateLimit returns middleware that enforces rate limiting per client IP.
// Set trustProxy only behind a proxy that overwrites X-Forwarded-For.
func RateLimit(perSec, burst int, trustProxy bool, logger *logrus.Logger) func(http.Handler) http.Handler {
	rl := NewRateLimiter(perSec, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getIP(r, trustProxy)

			if !rl.Allow(ip) {
				logger.WithField("ip", ip).Warn("Rate limit exceeded")
				metrics.RecordRateLimitExceeded(getIPPrefix(ip))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
