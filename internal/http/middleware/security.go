// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a hardening middleware that attaches a
// conservative set of HTTP security headers suitable for a JSON API running
// behind a reverse proxy.
//
// Design notes:
//   - No CSP here; the API never serves HTML
//   - HSTS is opt-in and only applied when the request is actually HTTPS
//   - NoStore is a default, not a rule: handlers that support conditional
//     requests (diary listings) overwrite Cache-Control themselves
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures HTTP security headers emitted by SecurityHeaders.
//
// EnableHSTS controls whether to emit Strict-Transport-Security for HTTPS
// requests (never for plain HTTP). HSTSMaxAge defaults to 180 days.
//
// Expose lists response headers browsers may read; it defaults to
// X-Request-ID and ETag.
type SecurityOptions struct {
	EnableHSTS   bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // e.g., 180 * 24h
	NoStore      bool          // add Cache-Control: no-store
	EnablePolicy bool          // include Permissions-Policy, etc.
	Expose       []string
}

var defaultExpose = []string{requestIDHeader, "ETag"}

// SecurityHeaders returns a Gin middleware that adds security headers to
// each response.
//
// Behavior:
//   - Always sets X-Content-Type-Options, X-Frame-Options and Referrer-Policy.
//   - EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
//   - NoStore adds Cache-Control: no-store plus the legacy Pragma/Expires pair.
//   - EnableHSTS adds Strict-Transport-Security on HTTPS requests only.
//   - Exposed headers are appended to Access-Control-Expose-Headers without
//     duplicating entries already present.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"
	expose := opt.Expose
	if expose == nil {
		expose = defaultExpose
	}

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
			h.Set("Strict-Transport-Security", hsts)
		}

		if len(expose) > 0 {
			h.Set("Access-Control-Expose-Headers", mergeHeaderList(h.Get("Access-Control-Expose-Headers"), expose))
		}

		c.Next()
	}
}

// mergeHeaderList appends names to a comma-separated header value, skipping
// names already listed (case-insensitively).
func mergeHeaderList(cur string, names []string) string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			seen[strings.ToLower(p)] = struct{}{}
			out = append(out, p)
		}
	}
	for _, n := range names {
		if _, ok := seen[strings.ToLower(n)]; ok {
			continue
		}
		seen[strings.ToLower(n)] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the incoming request used HTTPS either directly
// (r.TLS != nil) or via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
