// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities shared by all endpoints: the
// error envelope, the service-error mapping, and small success helpers.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - `fail()` logs 5xx responses with the request-scoped logger.
//   - `failErr()` is the single place where service sentinels become HTTP
//     statuses.
//
// Example error response:
//
//	HTTP/1.1 504 Gateway Timeout
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "gateway_timeout",
//	  "message": "upstream timed out"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emogotchi/emogotchi-backend/internal/http/middleware"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"User not found"`
	// Raw error text; only set on 500 responses
	Detail string `json:"detail,omitempty" example:"database is locked"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	failDetail(c, status, code, msg, "")
}

func failDetail(c *gin.Context, status int, code, msg, detail string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Detail:    detail,
	}

	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if detail != "" {
			ev = ev.Str("detail", detail)
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the matching HTTP response.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingField),
		errors.Is(err, services.ErrInvalidEmotion),
		errors.Is(err, services.ErrInvalidValue),
		errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found")
	case errors.Is(err, services.ErrDiaryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Diary entry not found")
	case errors.Is(err, services.ErrUpstreamTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeGatewayTimeout, err.Error())
	default:
		failDetail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error", err.Error())
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"User deleted successfully"`
}
