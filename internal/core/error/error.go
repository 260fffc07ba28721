package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is the user-facing fallback when internal errors occur.
	// Internal detail must never reach the response body.
	SystemErrorMessage = "An error occurred while processing your request. Please try again later."
	// InvalidInputMessage describes malformed or empty chat requests.
	InvalidInputMessage = "Invalid message format: the request must carry a non-empty user message."
	// UnknownIntentMessage is returned when classification yields no usable label.
	UnknownIntentMessage = "I'm sorry, I couldn't understand your question. Please try asking about the book, weather, or image generation."
	// NoResultMessage covers the defined no-tool-call fallback path.
	NoResultMessage = "I'm sorry, I couldn't process your request. Please try again."
	// RedisErrorMessage describes conversation-store failures.
	RedisErrorMessage = "conversation store operation failed"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Invalid marks a request-validation failure. The message is safe to echo.
func Invalid(err error) *AppError {
	return New(err, http.StatusBadRequest, InvalidInputMessage)
}

// UnknownIntent marks a classification result with no matching handler.
func UnknownIntent(err error) *AppError {
	return New(err, http.StatusBadRequest, UnknownIntentMessage)
}

// NoResult marks the defined fallback when a tool-eligible turn produced nothing.
func NoResult() *AppError {
	return New(nil, http.StatusInternalServerError, NoResultMessage)
}

// Internal wraps anything unanticipated behind the generic apology.
func Internal(err error) *AppError {
	return New(err, http.StatusInternalServerError, SystemErrorMessage)
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf extracts the safe user-facing message from an error chain.
// Errors outside the AppError taxonomy fall back to the generic apology.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return SystemErrorMessage
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
