package domain

import (
	"errors"
	"net/http"
)

// Kind classifies an error so that callers can switch on it exhaustively
// instead of comparing error values.
type Kind int

const (
	KindInternal Kind = iota
	KindTokenMissing
	KindInvalidToken
	KindTokenExpired
	KindSessionRevoked
	KindSessionNotFound
	KindUserNotFound
	KindForbidden
	KindRefreshFailed
	KindInvalidCredentials
	KindValidation
	KindNotFound
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTokenMissing:
		return "TokenMissing"
	case KindInvalidToken:
		return "InvalidToken"
	case KindTokenExpired:
		return "TokenExpired"
	case KindSessionRevoked:
		return "SessionRevoked"
	case KindSessionNotFound:
		return "SessionNotFound"
	case KindUserNotFound:
		return "UserNotFound"
	case KindForbidden:
		return "Forbidden"
	case KindRefreshFailed:
		return "RefreshFailed"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindInternal:
		return "InternalError"
	}
	return "InternalError"
}

// Code returns the machine-readable code reported to API clients.
func (k Kind) Code() string {
	switch k {
	case KindTokenMissing:
		return "TOKEN_MISSING"
	case KindInvalidToken:
		return "INVALID_TOKEN"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindSessionRevoked:
		return "SESSION_REVOKED"
	case KindSessionNotFound:
		return "SESSION_NOT_FOUND"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindForbidden:
		return "FORBIDDEN"
	case KindRefreshFailed:
		return "REFRESH_FAILED"
	case KindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInternal:
		return "INTERNAL_ERROR"
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus maps the kind to the status code used at the HTTP boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindTokenMissing, KindInvalidToken, KindTokenExpired,
		KindSessionRevoked, KindUserNotFound, KindRefreshFailed,
		KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindSessionNotFound:
		return http.StatusNotFound
	case KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error is the error type returned by the domain, auth and repository layers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a domain error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindInternal for errors that did not
// originate from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Authentication errors
var (
	ErrTokenMissing       = NewError(KindTokenMissing, "token missing")
	ErrInvalidToken       = NewError(KindInvalidToken, "invalid token")
	ErrTokenExpired       = NewError(KindTokenExpired, "token expired")
	ErrSessionRevoked     = NewError(KindSessionRevoked, "session revoked")
	ErrSessionNotFound    = NewError(KindSessionNotFound, "session not found")
	ErrUserNotFound       = NewError(KindUserNotFound, "user not found")
	ErrForbidden          = NewError(KindForbidden, "access denied")
	ErrRefreshFailed      = NewError(KindRefreshFailed, "refresh failed")
	ErrInvalidCredentials = NewError(KindInvalidCredentials, "invalid credentials")
)

// Request errors
var (
	ErrValidation = NewError(KindValidation, "validation error")
	ErrNotFound   = NewError(KindNotFound, "not found")
)
