// Package handlers implements the public HTTP API for the digest service.
//
// This file holds the response helpers every endpoint goes through, so
// success and failure bodies come out in one shape no matter which
// handler produced them. Failures always serialize as ErrorResponse with
// a stable machine-readable code:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "resource not found"
//	}
//
// Successes serialize the domain value directly, for example a briefing:
//
//	HTTP/1.1 200 OK
//	{ "id": "abc123", "title": "Your Feed Digest - Mar 2" }
//
// fail() is also the single choke point for server-side error logging:
// every 5xx passes through it and gets logged with the request-scoped
// logger, so a grep for "api error" finds all of them.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-digest/internal/http/middleware"
)

// ErrorResponse is the error envelope all endpoints return. The codes it
// carries are the constants in errors.go; clients switch on those, never
// on the message text. Swagger picks this struct up for the error
// responses in the generated API docs.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with an ErrorResponse carrying the correlation
// id from the response headers. Statuses at or above 500 are logged
// through the request-scoped logger before the envelope is written;
// client errors are left to the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail to packages outside handlers, mainly the router's
// fallback routes, so 404 and 405 bodies match everything else.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes 204 for operations that succeed without a body, such
// as briefing deletion.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
