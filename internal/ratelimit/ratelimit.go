// ABOUTME: Per-device token-bucket rate limiting for HTTP handlers
// ABOUTME: Keys on the authenticated device id, falling back to the client address

package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/2389/tatasbox/internal/auth"
	"github.com/2389/tatasbox/internal/metrics"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	logger   *slog.Logger
	now      func() time.Time
}

// New allows requestsPerMinute sustained with the given burst. A zero rate
// disables limiting.
func New(requestsPerMinute, burst int, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &Limiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		logger:   logger.With("component", "ratelimit"),
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	now := l.now()
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Handler rejects over-limit requests with 429 {"error":"rate limit exceeded"}.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := auth.DeviceID(r.Context())
		if key == "" {
			key = clientAddr(r)
		}

		if !l.Allow(key) {
			l.logger.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method)
			metrics.RecordRateLimited(r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Cleanup forgets keys idle for longer than maxIdle and returns how many.
func (l *Limiter) Cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Cleanup(maxIdle); n > 0 {
					l.logger.Debug("forgot idle rate limit keys", "count", n)
				}
			}
		}
	}()
}
