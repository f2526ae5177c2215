// This file implements the in-memory token-bucket rate limiter guarding
// the digest API. Limiting here is cost protection more than abuse
// control: a single POST /digest/trigger fans out into a headless browser
// session and an LLM call, so unthrottled clients get expensive fast.
//
// Buckets are kept per identity (owner id when known, client IP
// otherwise) and built on golang.org/x/time/rate. Idle buckets are
// evicted opportunistically so the map stays bounded. The limiter is
// process-local; a horizontally scaled deployment would need a shared
// store to enforce a global rate, which this service does not attempt.
//
// Replays detected by IdempotencyValidator bypass the limiter entirely.
// A replay is served from the recorded response and costs nothing, so
// charging tokens for it would only punish safe client retries.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// visitorTTL is how long a bucket may sit idle before eviction.
	visitorTTL = 10 * time.Minute
	// cleanupEvery is the lookup count between eviction sweeps.
	cleanupEvery = 5000
)

// keyFunc maps a request to the identity string that keys its bucket.
// Implementations must return a stable value for the whole request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc that uses the authenticated owner id
// from the Gin context ("userID") and falls back to the client IP. Keys
// carry a namespace prefix so "user:203.0.113.7" and "ip:203.0.113.7"
// can never collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor pairs a bucket with its last activity, for TTL eviction.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-identity token-bucket limits. Buckets are
// created on demand under a mutex and evicted after visitorTTL of
// inactivity. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second
// with the given burst capacity, keyed by keyFn. A burst <= 0 is coerced
// to 1 so a positive rps always admits at least single requests. An rps
// of 0 admits nothing beyond the initial burst.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
	}
}

// evictIdleLocked removes buckets idle for visitorTTL or longer. Callers
// must hold rl.mu.
func (rl *RateLimiter) evictIdleLocked(now time.Time) {
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= visitorTTL {
			delete(rl.visitors, k)
		}
	}
}

// getVisitor returns the bucket for key, creating it if absent. Every
// cleanupEvery lookups it first sweeps idle buckets; the sweep runs
// before the fetch so a stale bucket is evicted even when it is the one
// being asked for, forcing a fresh bucket with a full burst.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= cleanupEvery {
		rl.evictIdleLocked(now)
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request
// as a replay of an already completed one. Handler skips limiting for
// such requests.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the enforcement middleware. Replays pass through
// untouched; everything else draws a token from its identity's bucket.
// An empty bucket yields 429 with Retry-After and the standard error
// envelope:
//
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
