package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound               = errors.New("resource not found")
	ErrAlreadyExists          = errors.New("resource already exists")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrDatabaseError          = errors.New("database error")
	ErrCacheError             = errors.New("cache error")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrRateLimited            = errors.New("rate limit exceeded")
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindInternal       Kind = "INTERNAL"
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindRateLimit      Kind = "RATE_LIMIT"
	KindUpstream       Kind = "UPSTREAM"
)

type Error struct {
	Err     error
	Message string
	Code    string
	Kind    Kind
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
		Code:    "INTERNAL_ERROR",
		Kind:    KindInternal,
	}
}

func newKind(kind Kind, code string, err error, message string) *Error {
	return &Error{Err: err, Message: message, Code: code, Kind: kind}
}

func Authentication(err error, message string) *Error {
	return newKind(KindAuthentication, "AUTH_ERROR", err, message)
}

func Authorization(err error, message string) *Error {
	return newKind(KindAuthorization, "AUTHZ_ERROR", err, message)
}

func Validation(err error, message string) *Error {
	return newKind(KindValidation, "VALIDATION_ERROR", err, message)
}

func NotFound(message string) *Error {
	return newKind(KindNotFound, "NOT_FOUND", ErrNotFound, message)
}

func Conflict(message string) *Error {
	return newKind(KindConflict, "CONFLICT", ErrAlreadyExists, message)
}

func RateLimited(message string) *Error {
	return newKind(KindRateLimit, "RATE_LIMIT_EXCEEDED", ErrRateLimited, message)
}

func Upstream(err error, message string) *Error {
	return newKind(KindUpstream, "UPSTREAM_ERROR", err, message)
}

// KindOf walks the chain for the outermost classified error. Bare sentinels
// map to their natural kind; anything else is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials):
		return KindAuthentication
	case errors.Is(err, ErrInsufficientPermission):
		return KindAuthorization
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to show a caller. Internal errors never
// leak their detail.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "Internal server error"
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
