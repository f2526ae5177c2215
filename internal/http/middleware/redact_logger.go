// This file implements RedactingLogger, the access logger the digest API
// runs in production. It behaves like Logger but scrubs obvious personal
// identifiers from request metadata before anything reaches the log stream.
//
// The digest service handles feed content on behalf of identified owners,
// so URLs and headers routinely carry account handles, owner ids, and
// delivery addresses. The scrubbing rules are deliberately blunt:
//
//   - request and response bodies are never logged
//   - email addresses, phone numbers, and UUID-shaped ids are replaced
//     with typed [REDACTED:...] markers in query strings and header values
//   - Authorization, Cookie, and Set-Cookie are fully masked, plus any
//     headers named in RedactOptions.MaskHeaders
//
// Scrubbing reduces, but does not remove, the risk of sensitive values
// reaching logs; clients should still keep secrets out of query strings.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Redaction patterns, compiled once at package init.
//
// The phone pattern is digits-only so it cannot latch onto the hex
// segments of a UUID, and redact applies the UUID pattern first for the
// same reason. Examples the phone pattern matches: "+1 212-555-1212",
// "212 555 1212", "(212) 555-1212".
var (
	redactUUIDRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	redactEmailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	redactPhoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redact replaces identifier-shaped substrings with typed markers. Order
// matters: UUIDs first, then emails, then the loose phone pattern.
func redact(s string) string {
	if s == "" {
		return s
	}
	out := redactUUIDRE.ReplaceAllString(s, "[REDACTED:id]")
	out = redactEmailRE.ReplaceAllString(out, "[REDACTED:email]")
	return redactPhoneRE.ReplaceAllString(out, "[REDACTED:phone]")
}

// RedactOptions configures extra scrub behavior for RedactingLogger.
//
// MaskHeaders names additional HTTP headers whose values are replaced
// wholesale with "[REDACTED]". Matching is case-insensitive and merged
// with the built-in set (Authorization, Cookie, Set-Cookie).
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger returns Gin middleware that emits one scrubbed,
// structured log line per request.
//
// Each line carries the correlation id, method, route, scrubbed query,
// status, response size, latency, and the scrubbed request headers. The
// level follows the outcome: info by default, warn for 4xx, error for
// 5xx. Like Logger, it installs a request-scoped logger so handler code
// reached through LoggerFrom stays correlated.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := routePath(c)
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for name, vals := range c.Request.Header {
			if _, hide := masked[strings.ToLower(name)]; hide {
				safeHeaders[name] = "[REDACTED]"
				continue
			}
			safeHeaders[name] = redact(strings.Join(vals, ", "))
		}

		lg := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()

		status := c.Writer.Status()

		// Prefer the id echoed on the response; requests that skipped the
		// RequestID middleware may still have sent one.
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
