package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits bounds request throughput for a single client address.
type Limits struct {
	PerSecond rate.Limit
	Burst     int
	// SweepEvery is how often idle buckets are swept out.
	SweepEvery time.Duration
	// IdleAfter is how long a bucket may sit unused before the sweep
	// removes it.
	IdleAfter time.Duration
}

// APILimits are the defaults for authenticated admin traffic.
func APILimits() Limits {
	return Limits{
		PerSecond:  rate.Limit(20),
		Burst:      40,
		SweepEvery: 5 * time.Minute,
		IdleAfter:  10 * time.Minute,
	}
}

// AuthLimits throttle login and setup far harder than the rest of the API
// so credential guessing burns out quickly.
func AuthLimits() Limits {
	return Limits{
		PerSecond:  rate.Limit(5),
		Burst:      10,
		SweepEvery: 5 * time.Minute,
		IdleAfter:  10 * time.Minute,
	}
}

type clientBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client address. Buckets for
// addresses that go quiet are swept out by a background goroutine.
type ClientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limits  Limits
	done    chan struct{}
}

// NewClientLimiter starts a limiter and its sweep goroutine; callers own
// Stop.
func NewClientLimiter(limits Limits) *ClientLimiter {
	l := &ClientLimiter{
		buckets: make(map[string]*clientBucket),
		limits:  limits,
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether the client address may make another request now.
func (l *ClientLimiter) Allow(addr string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[addr]
	if !ok {
		bucket = &clientBucket{tokens: rate.NewLimiter(l.limits.PerSecond, l.limits.Burst)}
		l.buckets[addr] = bucket
	}
	bucket.lastSeen = time.Now()
	l.mu.Unlock()

	return bucket.tokens.Allow()
}

// Stop ends the sweep goroutine.
func (l *ClientLimiter) Stop() {
	close(l.done)
}

func (l *ClientLimiter) sweepLoop() {
	ticker := time.NewTicker(l.limits.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

func (l *ClientLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.limits.IdleAfter)
	swept := 0
	for addr, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, addr)
			swept++
		}
	}
	if swept > 0 {
		slog.Debug("rate limit buckets swept", "swept", swept, "remaining", len(l.buckets))
	}
}

// RateLimit turns a ClientLimiter into middleware. Over-limit requests get
// 429 with a Retry-After hint and the API's JSON error envelope.
func RateLimit(l *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)

			if !l.Allow(addr) {
				slog.Warn("rate limit exceeded",
					"addr", addr,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(authEnvelope{Error: "rate limit exceeded"}) //nolint:errcheck
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr is RemoteAddr without the port. chi's RealIP middleware runs
// earlier in the chain, so behind a proxy this is already the forwarded
// address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
