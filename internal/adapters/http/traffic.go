package httpadapter

import (
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client address so a single noisy
// owner app cannot starve the triage endpoint for everyone.
type clientLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &clientLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *clientLimiter) limiterFor(remoteAddr string) *rate.Limiter {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(c.rps, c.burst)
		c.limiters[host] = limiter
	}
	return limiter
}

func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	limiters := newClientLimiter(rps, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := limiters.limiterFor(r.RemoteAddr)
		if !limiter.Allow() {
			retryAfter := 1
			if limiters.rps > 0 && limiters.rps < 1 {
				retryAfter = int(1 / float64(limiters.rps))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
