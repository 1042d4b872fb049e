// Package httperrors provides generic error responses for HTTP endpoints.
// It ensures that internal implementation details are not leaked to clients.
package httperrors

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error response for clients
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Generic error messages that don't expose internal details
const (
	MsgInvalidRequest     = "Invalid request parameters"
	MsgInternalError      = "An internal error occurred"
	MsgServiceUnavailable = "Service temporarily unavailable"
	MsgResourceNotFound   = "Resource not found"
	MsgBadRequest         = "Bad request"
	MsgMalformedJSON      = "Request body is not valid JSON"
	MsgPayloadTooLarge    = "Request body exceeds the allowed size"
	MsgForbidden          = "Insufficient permissions"
)

// Error codes for client-side handling
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeForbidden          = "FORBIDDEN"
)

// RespondBadRequest sends a 400 response with a generic message
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = MsgBadRequest
	}
	c.JSON(400, ErrorResponse{
		Error: message,
		Code:  CodeBadRequest,
	})
}

// RespondMalformedJSON sends a 400 response for bodies that fail to decode.
// The connection is marked for closure: a client sending garbage is presumed
// misbehaving.
func RespondMalformedJSON(c *gin.Context) {
	c.Header("Connection", "close")
	c.JSON(400, ErrorResponse{
		Error: MsgMalformedJSON,
		Code:  CodeBadRequest,
	})
}

// RespondPayloadTooLarge sends a 413 response and marks the connection
// for closure. The oversized-body ceiling is a resource-exhaustion
// defense; the underlying connection must not be reused.
func RespondPayloadTooLarge(c *gin.Context) {
	c.Header("Connection", "close")
	c.JSON(413, ErrorResponse{
		Error: MsgPayloadTooLarge,
		Code:  CodePayloadTooLarge,
	})
}

// RespondForbidden sends a 403 response with a generic message
func RespondForbidden(c *gin.Context) {
	c.JSON(403, ErrorResponse{
		Error: MsgForbidden,
		Code:  CodeForbidden,
	})
}

// RespondInternalError sends a 500 response with a generic message
func RespondInternalError(c *gin.Context) {
	c.JSON(500, ErrorResponse{
		Error: MsgInternalError,
		Code:  CodeInternalError,
	})
}

// RespondServiceUnavailable sends a 503 response
func RespondServiceUnavailable(c *gin.Context) {
	c.JSON(503, ErrorResponse{
		Error: MsgServiceUnavailable,
		Code:  CodeServiceUnavailable,
	})
}

// RespondNotFound sends a 404 response
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = MsgResourceNotFound
	}
	c.JSON(404, ErrorResponse{
		Error: message,
		Code:  CodeNotFound,
	})
}
