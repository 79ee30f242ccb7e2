package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ipRateLimiter keeps a token bucket per client IP. Idle buckets expire.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// newIPRateLimiter allows n requests per window, refilled evenly.
func newIPRateLimiter(n int, window time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: cache.New(2*window, 5*window),
		limit:    rate.Every(window / time.Duration(n)),
		burst:    n,
	}
}

func (l *ipRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	// Refresh the expiry on every hit.
	l.limiters.SetDefault(key, limiter)
	l.mu.Unlock()

	return limiter.Allow()
}

var rateLimited = errorResponse{
	Error:  "rate_limited",
	Detail: "Rate limit exceeded. Please wait before sending more messages.",
}

func rateLimitMiddleware(l *ipRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				writeJSON(w, http.StatusTooManyRequests, rateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
