package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses.
// Only Message reaches the client, as {"error": Message}.
type APIError struct {
	Code    string `json:"-"`
	Message string `json:"error"`
	Status  int    `json:"-"`
	Details string `json:"-"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict     = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)

	ErrDuplicateIdentity  = NewAPIError("DUPLICATE_IDENTITY", "Username or email already exists", http.StatusBadRequest)
	ErrInvalidCredentials = NewAPIError("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)
	ErrUserNotFound       = NewAPIError("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrPostNotFound       = NewAPIError("POST_NOT_FOUND", "Post not found", http.StatusNotFound)
	ErrNoProfileFields    = NewAPIError("NO_PROFILE_FIELDS", "No valid fields to update", http.StatusBadRequest)
)

// BadRequest builds a 400 with a route-specific message.
func BadRequest(message string) *APIError {
	return NewAPIError("BAD_REQUEST", message, http.StatusBadRequest)
}

// Wrap converts err into an APIError. Existing APIErrors pass through untouched.
func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// Internal reports err as a 500 whose message is the raw error text.
func Internal(err error) *APIError {
	return Wrap(err, ErrInternal.Code, err.Error(), http.StatusInternalServerError)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
