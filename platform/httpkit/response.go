// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
//
// Every JSON body carries a top-level "success" flag. Failures add a
// human-readable "error" and a stable "error_code".
package httpkit

import (
	"net/http"

	"vdestor_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

const (
	// CodeInternal is used for errors that carry no code of their own.
	CodeInternal = "INTERNAL_ERROR"
	// CodeRateLimited is returned by the rate limiting middleware.
	CodeRateLimited = "RATE_LIMITED"
	// CodeUnauthorized is returned when a token is missing or invalid.
	CodeUnauthorized = "UNAUTHORIZED"
	// CodeForbidden is returned when the caller lacks the required role.
	CodeForbidden = "FORBIDDEN"
)

// SuccessResponse is the envelope of every successful response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is the envelope of every failed response.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	ErrorCode string      `json:"error_code"`
	Details   interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK sends a 200 OK response wrapping payload in the success envelope.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: payload})
}

// Failure sends a failure envelope with the given status code.
func Failure(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, ErrorCode: code, Details: details})
}

// AbortFailure is Failure for middleware: it stops the handler chain.
func AbortFailure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, ErrorCode: code})
}

// HandleError maps domain errors to HTTP responses.
// If the error chain carries an *apperr.Error, its Kind selects the status
// code and its Code the error_code. Anything else is an internal error and
// its message is not exposed.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	if domainErr, ok := apperr.As(err); ok {
		code := domainErr.Code
		if code == "" {
			code = defaultCode(domainErr.Kind)
		}
		Failure(c, domainErr.HTTPStatus(), code, domainErr.Message, domainErr.Details)
		return true
	}

	_ = c.Error(err)
	Failure(c, http.StatusInternalServerError, CodeInternal, "internal error", nil)
	return true
}

func defaultCode(kind apperr.Kind) string {
	switch kind {
	case apperr.KindNotFound:
		return "NOT_FOUND"
	case apperr.KindValidation, apperr.KindBadRequest:
		return "BAD_REQUEST"
	case apperr.KindForbidden:
		return CodeForbidden
	case apperr.KindUnauthorized:
		return CodeUnauthorized
	case apperr.KindUnavailable:
		return "UNAVAILABLE"
	default:
		return CodeInternal
	}
}
