package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Middleware returns a chi-compatible middleware limiting requests per
// client IP. Verification endpoints sit behind it so that brute-forcing a
// six-digit code is bounded at the transport layer as well as by challenge
// expiry.
func Middleware(capacity int, refillRate float64) func(http.Handler) http.Handler {
	limiter := NewLimiter(capacity, refillRate, 1*time.Hour)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.Allow(ip) {
				slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the originating IP, preferring X-Forwarded-For when the
// service runs behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
