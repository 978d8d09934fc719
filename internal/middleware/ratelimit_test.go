package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPForRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		remoteAddr string
		want       string
	}{
		{
			name:       "single ip",
			header:     "203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "multiple ips use first",
			header:     " 203.0.113.1 , 198.51.100.2 ",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "invalid forwarded falls back",
			header:     "invalid",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "ipv6 remote fallback",
			header:     "invalid",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::2",
		},
		{
			name:       "remote without port",
			remoteAddr: "203.0.113.1",
			want:       "203.0.113.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set("X-Forwarded-For", tc.header)
			}
			if got := clientIPForRateLimit(req); got != tc.want {
				t.Fatalf("clientIPForRateLimit() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKeyedLimiterBurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewKeyedLimiter(60, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if l.Allow("u1") {
		t.Fatalf("third event inside the same second must be limited")
	}
	if !l.Allow("u2") {
		t.Fatalf("keys must not share a bucket")
	}
	now = now.Add(time.Second)
	if !l.Allow("u1") {
		t.Fatalf("one token should refill after a second")
	}
}

func TestKeyedLimiterPrune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewKeyedLimiter(10, 1)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("fresh")

	if n := l.Prune(time.Minute); n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
}

func TestNilLimiterAllows(t *testing.T) {
	l := NewKeyedLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("x") {
			t.Fatalf("disabled limiter must allow")
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewKeyedLimiter(1, 1)
	h := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:5000"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
