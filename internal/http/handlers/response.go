// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: a structured error envelope, consistent JSON serialization, and
// helpers for the streaming endpoints, which cannot change status or headers
// once the first fragment has been written.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`; the
//     human-readable text travels in the `error` field, which is the shape
//     the widget frontend consumes.
//   - fail() centralizes formatting and logs 5xx responses with request
//     context.
//   - Streaming failures after the first byte are appended to the body as a
//     fixed plain-text notice instead (see streamErrNotice), because the 200
//     status is already on the wire.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmarques/go-drops-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: optional correlation ID, echoed from X-Request-ID, used to
//     match server logs with client-side errors.
//   - Code: stable, machine-readable string (see errors.go constants).
//   - Error: human-readable description, safe to display to users.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"bad_request"`
	Error     string `json:"error" example:"content is empty"`
}

// streamErrNotice is the fixed in-band text appended when a stream fails
// after output has started. A client must treat a stream ending with this
// notice as failed even though the transport-level status was already 200.
const streamErrNotice = "\n\n[The assistant was interrupted. Please try again.]"

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Error:     msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
