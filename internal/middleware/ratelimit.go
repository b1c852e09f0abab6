package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veritest/veritest-backend/internal/response"
)

// RateLimiter caps requests per client IP with a refilling token bucket.
// Used on the auth group to slow down credential guessing.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	interval time.Duration
}

type bucket struct {
	tokens   int
	refilled time.Time
}

// NewRateLimiter allows `capacity` requests per `interval` per IP.
func NewRateLimiter(capacity int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		interval: interval,
	}
	go rl.evictLoop()
	return rl
}

// Middleware enforces the limit, answering 429 once a bucket runs dry.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.capacity, refilled: time.Now()}
		rl.buckets[ip] = b
	}

	if intervals := int(time.Since(b.refilled) / rl.interval); intervals > 0 {
		b.tokens += intervals * rl.capacity
		if b.tokens > rl.capacity {
			b.tokens = rl.capacity
		}
		b.refilled = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// evictLoop drops buckets idle long enough to be fully refilled anyway.
func (rl *RateLimiter) evictLoop() {
	for range time.Tick(time.Minute) {
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.refilled) > 3*time.Minute {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
