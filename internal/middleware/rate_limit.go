package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig bounds requests per client over a window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultRateLimit allows 100 requests per minute per client IP.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 100, Window: time.Minute}
}

// RateLimiter is an in-memory token bucket limiter keyed by client IP.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates the limiter and starts the stale-bucket sweeper.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*tokenBucket),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for key, bucket := range rl.buckets {
			if bucket.lastRefill.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware enforces the limit and sets the X-RateLimit headers.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining := rl.take(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retryAfter := int(rl.cfg.Window.Seconds() / float64(rl.cfg.Requests))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "RATE_LIMIT_EXCEEDED",
				"message":     "too many requests",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) take(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: float64(rl.cfg.Requests), lastRefill: now}
		rl.buckets[key] = bucket
	}

	refillPerSecond := float64(rl.cfg.Requests) / rl.cfg.Window.Seconds()
	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * refillPerSecond
	if bucket.tokens > float64(rl.cfg.Requests) {
		bucket.tokens = float64(rl.cfg.Requests)
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false, 0
	}
	bucket.tokens--
	return true, int(bucket.tokens)
}
