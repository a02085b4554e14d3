package connection

import (
	"errors"
	"fmt"
)

// ErrorKind is the canonical classification of a failure surfaced to callers
type ErrorKind string

const (
	// Provider-level kinds, produced by platform adapters
	KindTokenExpired       ErrorKind = "TOKEN_EXPIRED"
	KindTokenRefreshFailed ErrorKind = "TOKEN_REFRESH_FAILED"
	KindTokenRevoked       ErrorKind = "TOKEN_REVOKED"
	KindPlatformError      ErrorKind = "PLATFORM_ERROR"
	KindPlatformUnknown    ErrorKind = "PLATFORM_UNKNOWN"

	// Orchestration-level kinds
	KindIdentityUnresolved ErrorKind = "IDENTITY_UNRESOLVED"
	KindOwnershipMismatch  ErrorKind = "OWNERSHIP_MISMATCH"
	KindNotFound           ErrorKind = "CONNECTION_NOT_FOUND"
	KindReconcileFailed    ErrorKind = "RECONCILE_FAILED"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// RequiresReauthorization reports whether the user has to go through consent again
func (k ErrorKind) RequiresReauthorization() bool {
	switch k {
	case KindTokenExpired, KindTokenRevoked, KindTokenRefreshFailed:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the same call may succeed later without user action
func (k ErrorKind) IsRetryable() bool {
	return k == KindPlatformError || k == KindReconcileFailed
}

// Error is a classified failure. Provider errors keep the native code and the raw
// response body so nothing the provider said is lost.
type Error struct {
	Kind    ErrorKind
	Message string
	// Code is the provider's native error code, if any
	Code string
	// Raw is the untouched provider response body, if any
	Raw string
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("connection: %s: %s", e.Kind, e.Message)
	if e.Code != "" {
		msg += fmt.Sprintf(" (code=%s)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package-level sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a classified error without provider details
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewPlatformError creates a classified provider error
func NewPlatformError(kind ErrorKind, code, message, raw string) *Error {
	return &Error{Kind: kind, Message: message, Code: code, Raw: raw}
}

// WrapError classifies an underlying error
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is checks by kind
var (
	ErrTokenExpired       = NewError(KindTokenExpired, "token expired")
	ErrTokenRefreshFailed = NewError(KindTokenRefreshFailed, "token refresh failed")
	ErrTokenRevoked       = NewError(KindTokenRevoked, "token revoked")
	ErrPlatform           = NewError(KindPlatformError, "platform error")
	ErrPlatformUnknown    = NewError(KindPlatformUnknown, "unknown platform error")
	ErrIdentityUnresolved = NewError(KindIdentityUnresolved, "unable to identify the user who started this authorization")
	ErrOwnershipMismatch  = NewError(KindOwnershipMismatch, "connection does not belong to the caller")
	ErrConnectionNotFound = NewError(KindNotFound, "connection not found")
	ErrItemNotFound       = NewError(KindNotFound, "connection item not found")
	ErrReconcileFailed    = NewError(KindReconcileFailed, "failed to persist connection")
)

// KindOf returns the kind of a classified error, or an empty kind
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError extracts the classified error, classifying unknown errors as PLATFORM_UNKNOWN
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(KindPlatformUnknown, "unclassified failure", err)
}
