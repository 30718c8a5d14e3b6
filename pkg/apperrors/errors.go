// Package apperrors defines the error taxonomy shared by all handlers and
// repositories. Domain code returns *AppError values (or wraps causes in
// them); the HTTP layer converts them to a status code and JSON body in one
// place (Respond) so that error shapes stay consistent across endpoints.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AppError is an error with a stable classification code and a
// client-safe message. Cause carries the underlying error for logs
// and errors.Is/As; it is never serialized to clients.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError that records err as its cause.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// Sentinel errors for the common domain failures. Handlers compare with
// errors.Is so repositories can return these directly or wrap them.
var (
	ErrInvalidCredentials = New(CodeUnauthorized, "invalid credentials")
	ErrInvalidToken       = New(CodeUnauthorized, "invalid token")
	ErrTokenExpired       = New(CodeExpired, "token has expired")
	ErrTokenConsumed      = New(CodeAlreadyConsumed, "token has already been used")
	ErrTokenNotFound      = New(CodeNotFound, "token not found")
	ErrUserNotFound       = New(CodeNotFound, "user not found")
	ErrAppNotFound        = New(CodeNotFound, "app not found")
	ErrServerNotFound     = New(CodeNotFound, "server not found")
	ErrNotOwner           = New(CodeForbidden, "you do not own this app")
	ErrEmailTaken         = New(CodeConflict, "email is already registered")
	ErrUsernameTaken      = New(CodeConflict, "username is already taken")
)

// Validation creates a 400-class error for malformed input.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// Internal wraps an unexpected error. The message shown to clients is
// generic; the cause goes to the logs.
func Internal(err error) *AppError {
	return Wrap(CodeInternal, "internal server error", err)
}

// Respond writes err as a JSON error response. Non-AppError values are
// treated as internal errors so unexpected failures never leak details.
func Respond(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Internal(err)
	}

	c.JSON(appErr.Code.HTTPStatus(), gin.H{
		"error": appErr.Message,
		"code":  string(appErr.Code),
	})
}

// AbortUnauthorized writes a 401 response and stops the handler chain.
// Used by middleware, which must abort rather than return.
func AbortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"code":  string(CodeUnauthorized),
	})
}
