// Package httpmiddleware holds transport-level gin middleware; nothing
// here touches domain logic.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter throttles callers per client IP with a token bucket.
// RATE_LIMIT_PER_MIN sets both the sustained rate and the burst size;
// tokens accrue continuously rather than on a fixed tick, so a caller
// pacing itself at the limit is never rejected. State lives in process
// memory and is lost on restart.
type IPRateLimiter struct {
	perMinute float64

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	nowFn   func() time.Time
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewIPRateLimiter allows perMinute requests per IP, with bursts up to
// the same amount.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &IPRateLimiter{
		perMinute: float64(perMinute),
		buckets:   make(map[string]*tokenBucket),
		nowFn:     time.Now,
	}
}

// Middleware rejects over-limit requests with 429 before they reach
// the handlers.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.take(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *IPRateLimiter) take(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &tokenBucket{tokens: l.perMinute - 1, lastSeen: now}
		return true
	}

	b.tokens += now.Sub(b.lastSeen).Minutes() * l.perMinute
	if b.tokens > l.perMinute {
		b.tokens = l.perMinute
	}
	b.lastSeen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
