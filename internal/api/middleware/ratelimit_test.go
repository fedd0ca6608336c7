package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimits(perSecond rate.Limit, burst int, idleAfter time.Duration) Limits {
	return Limits{
		PerSecond:  perSecond,
		Burst:      burst,
		SweepEvery: time.Hour,
		IdleAfter:  idleAfter,
	}
}

func TestClientLimiterBurstThenDeny(t *testing.T) {
	l := NewClientLimiter(testLimits(2, 2, time.Hour))
	defer l.Stop()

	if !l.Allow("192.168.1.1") {
		t.Fatal("first request denied")
	}
	if !l.Allow("192.168.1.1") {
		t.Fatal("second request denied")
	}

	// Third request exceeds the burst.
	if l.Allow("192.168.1.1") {
		t.Fatal("request past the burst was allowed")
	}

	// Other addresses have their own bucket.
	if !l.Allow("192.168.1.2") {
		t.Fatal("different address shares a drained bucket")
	}
}

func TestClientLimiterSweepEvictsIdleBuckets(t *testing.T) {
	l := NewClientLimiter(testLimits(10, 10, 0)) // idle immediately
	defer l.Stop()

	l.Allow("10.0.0.1")

	l.mu.Lock()
	count := len(l.buckets)
	l.mu.Unlock()
	if count != 1 {
		t.Fatalf("bucket count = %d, want 1", count)
	}

	l.sweep()

	l.mu.Lock()
	count = len(l.buckets)
	l.mu.Unlock()
	if count != 0 {
		t.Fatalf("bucket count after sweep = %d, want 0", count)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewClientLimiter(testLimits(1, 1, time.Hour))
	defer l.Stop()

	handler := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q, want \"1\"", rec.Header().Get("Retry-After"))
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.1", "10.0.0.1"}, // no port
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := clientAddr(r); got != tt.want {
			t.Errorf("clientAddr(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
