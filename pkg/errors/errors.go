package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

// Identity and membership sentinels. Each one has a constructor below that
// carries it, so callers can match with errors.Is through any wrapping.
var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserNotFound       = fmt.Errorf("user: %w", ErrNotFound)
	ErrAlreadyMember      = errors.New("already a team member")
	ErrLastAdmin          = errors.New("last team admin")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// EmailExists creates a 409 error for a registration or profile email collision.
func EmailExists(email string) *AppError {
	return &AppError{
		Code:    "EMAIL_EXISTS",
		Message: fmt.Sprintf("email %q is already registered", email),
		Status:  http.StatusConflict,
		Err:     ErrEmailExists,
	}
}

// InvalidCredentials creates a 401 error. The message never says which
// factor was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// InvalidToken creates a 401 error for an unknown, malformed or consumed refresh token.
func InvalidToken() *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: "invalid refresh token",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidToken,
	}
}

// TokenExpired creates a 401 error for a refresh token found past its expiry.
func TokenExpired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "refresh token expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenExpired,
	}
}

// UserNotFound creates a 404 error for a referenced user that does not exist.
func UserNotFound(id string) *AppError {
	return &AppError{
		Code:    "USER_NOT_FOUND",
		Message: fmt.Sprintf("user with id %s not found", id),
		Status:  http.StatusNotFound,
		Err:     ErrUserNotFound,
	}
}

// AlreadyMember creates a 409 error.
func AlreadyMember(userID string) *AppError {
	return &AppError{
		Code:    "ALREADY_MEMBER",
		Message: fmt.Sprintf("user %s is already a member of this team", userID),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyMember,
	}
}

// LastAdmin creates a 400 error raised when a change would leave a team without an admin.
func LastAdmin() *AppError {
	return &AppError{
		Code:    "LAST_ADMIN",
		Message: "cannot remove or demote the last admin of a team",
		Status:  http.StatusBadRequest,
		Err:     ErrLastAdmin,
	}
}

// RateLimited creates a 429 error.
func RateLimited() *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: "too many requests, slow down",
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict),
		errors.Is(err, ErrEmailExists), errors.Is(err, ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrLastAdmin):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
