// This file provides SecurityHeaders, which stamps a conservative set of
// hardening headers on every digest API response. The service is a JSON
// API normally deployed behind a reverse proxy, so the set is the
// API-appropriate one: content-type sniffing and framing are refused, no
// referrer leaks, optional HSTS when TLS terminates cleanly end-to-end,
// and optional cache suppression.
//
// There is deliberately no Content-Security-Policy here. CSP only matters
// for HTML, and the only HTML this service serves is the Swagger UI,
// which ships its own assets.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultHSTSMaxAge is used when EnableHSTS is set without a lifetime.
const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS turns on Strict-Transport-Security for HTTPS requests, never
// for plain HTTP. Enable it only when traffic is HTTPS the whole way,
// proxy-to-app included. HSTSMaxAge sets the advertised lifetime and
// falls back to 180 days when zero.
//
// NoStore adds Cache-Control: no-store plus the legacy Pragma and Expires
// pair. The digest API leaves it off for routes that revalidate with
// ETags; turning it on would defeat conditional GETs on the post and
// briefing lists.
//
// EnablePolicy sends Permissions-Policy and
// X-Permitted-Cross-Domain-Policies. Browsers honor them, other clients
// ignore them.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns Gin middleware that sets hardening headers on
// each response.
//
// Always set:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// Conditionally set, per SecurityOptions: the browser feature policies,
// the no-store cache trio, and Strict-Transport-Security with
// includeSubDomains and preload. When a correlation id is already on the
// response, it is added to Access-Control-Expose-Headers so browser
// callers can read it across origins.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hstsValue := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if rid := h.Get(requestIDHeader); rid != "" {
			exposeHeader(h, requestIDHeader)
		}

		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers without
// clobbering values set by the CORS layer.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(cur, name):
		h.Set(key, cur+", "+name)
	}
}

// isHTTPS reports whether the request arrived over TLS, either directly
// or via a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
