// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"carma_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is advertised on retryable upstream failures.
const retryAfterSeconds = "2"

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Code      string      `json:"code,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError maps domain errors to HTTP responses.
// If the error chain holds an *apperr.Error, its Kind determines the HTTP
// status code. Otherwise it answers 500 without leaking the cause. Server
// errors are attached to the gin context for RequestLogger.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	domainErr, ok := apperr.As(err)
	if !ok {
		// Fallback for non-typed errors
		domainErr = apperr.Internal("internal error").WithCode(apperr.CodeInternal)
	}

	status := domainErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if domainErr.Retryable() {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.JSON(status, ErrorResponse{
		Error:     domainErr.Message,
		Code:      domainErr.Code,
		Retryable: domainErr.Retryable(),
		Details:   domainErr.Details,
	})
	return true
}
