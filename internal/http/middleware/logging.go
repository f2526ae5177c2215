// Package middleware contains the shared Gin middleware for the digest API.
//
// This file covers request correlation and failure containment:
//
//   - RequestID() gives every request a correlation id, propagated through
//     the X-Request-ID header and the Gin context.
//   - Logger() emits one structured access-log line per request and stores
//     a request-scoped zerolog.Logger for handlers to enrich.
//   - Recovery() turns a handler panic into a JSON 500 carrying the
//     correlation id, with the stack recorded server-side only.
//   - LoggerFrom() hands the request-scoped logger back to downstream code,
//     e.g. lg.Warn().Str("owner_id", id).Msg("retention trim skipped").
//
// Chain order matters: RequestID first, then a logger (Logger or
// RedactingLogger), then Recovery, so panics are logged with the
// correlation id already assigned. Raw query strings are capped before
// logging to keep pathological URLs from bloating the log stream.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation id.
	requestIDKey = "requestID"
	// requestIDHeader carries the correlation id on requests and responses.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key holding the request-scoped logger.
	loggerKey = "logger"
	// maxQueryLogLength caps how much of a raw query string is logged.
	maxQueryLogLength = 2048
)

// RequestID reuses the caller-provided X-Request-ID when present and mints
// a UUIDv4 otherwise. The id is stored in the context and echoed on the
// response so clients can quote it when reporting failures.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits a structured access log per request.
//
// The pre-request fields (method, route, caller identity, query, request
// size) are bound into a request-scoped logger that handlers can retrieve
// via LoggerFrom. Once the handler chain returns, the response status,
// latency, and bytes written are appended and the line is emitted at a
// level chosen by outcome: error for 5xx or collected Gin errors, warn for
// 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")

		lg := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength). // -1 when unknown
			Logger()
		c.Set(loggerKey, &lg)

		c.Next()

		status := c.Writer.Status()
		out := lg.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			out.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= http.StatusInternalServerError:
			out.Error().Msg("request")
		case status >= http.StatusBadRequest:
			out.Warn().Msg("request")
		default:
			out.Info().Msg("request")
		}
	}
}

// Recovery converts a handler panic into a JSON 500. The panic value and
// stack go to the server log only; the client sees the standard error
// envelope with the correlation id. A response already partially written
// is aborted without a body, since the envelope can no longer be sent
// intact.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger installed by Logger or
// RedactingLogger, falling back to the process logger when none is
// attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// routePath prefers the registered route template, which keeps log and
// metric cardinality bounded, and falls back to the raw URL path when no
// route matched (404s).
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// asString narrows a context value to string, mapping anything else to "".
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes, appending an ellipsis when cut. A max <= 0
// disables the cap. Byte truncation can split a rune, which is acceptable
// for log fields.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
