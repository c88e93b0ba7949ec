// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log. It scrubs obvious PII
// and user identifiers from request metadata before emitting one structured
// line per request. Bodies are never logged.
//
// Redaction rules:
//   - Query parameters named in RedactOptions.MaskParams (uuid, user_uuid,
//     nickname by default) are replaced with [REDACTED] by name.
//   - Remaining query values and header values are pattern-scrubbed for
//     UUIDs, email addresses and phone numbers.
//   - Authorization, Cookie, Set-Cookie and any RedactOptions.MaskHeaders are
//     fully masked.
//   - If-None-Match and If-Match carry server-minted entity tags whose digit
//     runs are versions, not phone numbers; only UUIDs and emails are scrubbed.
//
// The route pattern (c.FullPath) is logged rather than the raw path, so path
// parameters such as /user/:uuid never reach the log.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) to mask fully.
	MaskHeaders []string
	// MaskParams are query parameter names whose values are masked. Nil
	// selects the defaults; an empty non-nil slice disables name masking.
	MaskParams []string
}

var defaultMaskParams = []string{"uuid", "user_uuid", "nickname"}

const redacted = "[REDACTED]"

// UUIDs are scrubbed before phone numbers so the phone pattern cannot match
// the digit runs inside a UUID.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// entityTagHeaders hold validators echoed back from our own ETags.
var entityTagHeaders = map[string]struct{}{"if-none-match": {}, "if-match": {}}

func scrubIDs(s string) string {
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

func scrub(s string) string {
	if s == "" {
		return s
	}
	return phoneRE.ReplaceAllString(scrubIDs(s), "[REDACTED:phone]")
}

// scrubQuery masks named parameters and pattern-scrubs the rest. Unparseable
// queries are scrubbed as a whole.
func scrubQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(raw)
	}
	for k, vv := range vals {
		_, masked := mask[strings.ToLower(k)]
		for i := range vv {
			if masked {
				vv[i] = redacted
			} else {
				vv[i] = scrub(vv[i])
			}
		}
	}
	// Encode escapes the brackets; keep the markers readable
	out, _ := url.QueryUnescape(vals.Encode())
	return out
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// RedactingLogger returns a Gin middleware that writes the access log with
// sensitive values scrubbed. The level is info, warn for 4xx, and error for
// 5xx. It logs through the global logger, not the request-scoped one, so the
// user key is not attached.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := toSet(append([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders...))
	params := opts.MaskParams
	if params == nil {
		params = defaultMaskParams
	}
	maskParams := toSet(params)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrubQuery(c.Request.URL.RawQuery, maskParams)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			name := strings.ToLower(k)
			if _, ok := maskHeaders[name]; ok {
				safeHeaders[k] = redacted
				continue
			}
			v := strings.Join(vv, ", ")
			if _, ok := entityTagHeaders[name]; ok {
				safeHeaders[k] = scrubIDs(v)
				continue
			}
			safeHeaders[k] = scrub(v)
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		lg := &log.Logger
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
