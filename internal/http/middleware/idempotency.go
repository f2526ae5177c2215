// This file implements idempotency handling for the unsafe digest
// endpoints. A retried POST /digest/trigger must not start a second
// pipeline run, because each run costs a browser session and an LLM
// call. The middleware validates the Idempotency-Key header, stashes the
// normalized key in the request context, and consults a caller-supplied
// lookup to flag requests whose result already exists.
//
// The middleware never serves a cached payload itself. Handlers stay in
// charge of replays; they read IsReplay and respond with the previously
// persisted briefing. Persistence is decoupled behind the narrow
// IdempotencyLookup function type so the HTTP layer stays free of
// storage concerns.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients send on unsafe
// operations. The value must be stable across retries of one semantic
// operation; a UUID per intended run works well.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys for idempotency state. Unexported on purpose; use the
// accessor helpers.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// defaultKeyMaxLen caps accepted key length when options do not.
const defaultKeyMaxLen = 200

// defaultKeyPattern accepts an RFC 7230-like token alphabet plus a few
// safe punctuation characters, which covers UUIDs and timestamp-based
// keys without admitting header-splitting garbage.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions tunes header validation. TTL enforcement does not
// belong here; the lookup function owns the freshness window.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 use the default.
	MaxLen int
	// Pattern restricts the key alphabet. Nil uses the default token
	// pattern.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a completed, still-fresh result
// already exists for (ownerID, key) at the given time. Errors mean the
// lookup itself failed and must not block normal processing.
type IdempotencyLookup func(ctx context.Context, ownerID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator returns middleware that enforces the key
// contract:
//
//   - no header: pass through untouched
//   - malformed or oversized key: 400 with the standard envelope
//   - valid key: stored in the context for GetIdempotencyKey
//   - lookup hit: replay and rate-bypass flags set, so the handler can
//     serve the stored outcome and the limiter charges nothing
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultKeyMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			owner := ownerFromCtx(c)
			if exists, _ := lookup(c.Request.Context(), owner, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator. Handlers should use this instead of re-reading
// the header, which skips validation.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request repeats an already completed
// operation for the same owner and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ownerFromCtx resolves the owner identity set by upstream auth,
// defaulting to the development tenant the rest of the stack assumes
// when no identity is present.
func ownerFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-user"
}
