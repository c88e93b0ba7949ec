// Package middleware holds the Gin middleware shared by every route.
//
// This file covers request correlation: RequestID assigns or propagates
// X-Request-ID, UserKey lifts the caller's uuid out of the route or query,
// ContextLogger derives a zerolog logger carrying both and stores it in the
// request context for the services, and Recovery turns panics into the JSON
// error envelope.
//
// Install them in that order, with RedactingLogger (the access log) between
// ContextLogger and Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDHeader = "X-Request-ID"

	// gin context keys
	requestIDKey = "requestID"
	userKeyCtx   = "userID"
	loggerKey    = "logger"
)

// RequestID reuses an incoming X-Request-ID or mints a UUIDv4, echoes it on
// the response and stores it under "requestID".
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

// UserKey stores the caller's user key under "userID". The key is taken from
// the :uuid route parameter, then the uuid or user_uuid query parameters.
// Body fields are not inspected.
func UserKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if k := userKeyFrom(c); k != "" {
			c.Set(userKeyCtx, k)
		}
		c.Next()
	}
}

func userKeyFrom(c *gin.Context) string {
	for _, v := range []string{c.Param("uuid"), c.Query("uuid"), c.Query("user_uuid")} {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToUpper(v)
		}
	}
	return ""
}

// ContextLogger attaches a request-scoped zerolog.Logger carrying the
// request ID, user key, method and route. It is available through
// LoggerFrom(c) and zerolog.Ctx(c.Request.Context()).
func ContextLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get(userKeyCtx)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_key", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500
// error unless a response was already written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or a copy of the
// global logger when ContextLogger is not installed.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
