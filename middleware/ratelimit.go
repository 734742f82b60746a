package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IPRateLimiter is a sliding-window limiter keyed by client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewIPRateLimiter allows limit requests per window per IP. A limit of zero
// or less disables limiting.
func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	// Clean old requests
	requests := rl.requests[ip]
	i := 0
	for ; i < len(requests); i++ {
		if requests[i].After(cutoff) {
			break
		}
	}
	requests = requests[i:]

	if len(requests) >= rl.limit {
		rl.requests[ip] = requests
		return false
	}
	rl.requests[ip] = append(requests, now)
	return true
}

// Prune forgets IPs with no requests inside the window.
func (rl *IPRateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for ip, requests := range rl.requests {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			delete(rl.requests, ip)
		}
	}
}

func RateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			logrus.WithFields(logrus.Fields{"ip": ip, "path": c.Request.URL.Path}).Warn("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
