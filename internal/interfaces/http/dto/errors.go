package dto

import (
	"errors"
	"net/http"

	"github.com/erp/connhub/internal/domain/connection"
)

// Error codes not produced by the connection error taxonomy
const (
	ErrCodeInternal             = "ERR_INTERNAL"
	ErrCodeBadRequest           = "ERR_BAD_REQUEST"
	ErrCodeValidation           = "ERR_VALIDATION"
	ErrCodeUnauthorized         = "ERR_UNAUTHORIZED"
	ErrCodePlatformNotSupported = "ERR_PLATFORM_NOT_SUPPORTED"
	ErrCodeNotFound             = "ERR_NOT_FOUND"
)

// kindHTTPStatus maps each error kind to the status returned to API callers.
// Provider token failures are 409: the request was fine, the stored grant is not.
var kindHTTPStatus = map[connection.ErrorKind]int{
	connection.KindTokenExpired:       http.StatusConflict,
	connection.KindTokenRefreshFailed: http.StatusConflict,
	connection.KindTokenRevoked:       http.StatusConflict,
	connection.KindPlatformError:      http.StatusBadGateway,
	connection.KindPlatformUnknown:    http.StatusBadGateway,
	connection.KindIdentityUnresolved: http.StatusUnauthorized,
	connection.KindOwnershipMismatch:  http.StatusForbidden,
	connection.KindNotFound:           http.StatusNotFound,
	connection.KindReconcileFailed:    http.StatusServiceUnavailable,
}

// StatusForKind returns the HTTP status for an error kind, 500 when unknown
func StatusForKind(kind connection.ErrorKind) int {
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError converts a service error into a status code and response body.
// Raw provider bodies are never included.
func FromError(err error, requestID string) (int, Response) {
	switch {
	case errors.Is(err, connection.ErrInvalidStatus),
		errors.Is(err, connection.ErrInvalidUserID),
		errors.Is(err, connection.ErrInvalidHandle),
		errors.Is(err, connection.ErrMissingCode),
		errors.Is(err, connection.ErrMissingCorrelation):
		return http.StatusBadRequest, NewErrorResponse(ErrCodeBadRequest, err.Error(), requestID)
	case errors.Is(err, connection.ErrPlatformNotSupported),
		errors.Is(err, connection.ErrInvalidPlatformCode):
		return http.StatusNotFound, NewErrorResponse(ErrCodePlatformNotSupported, "platform not supported", requestID)
	}

	var cerr *connection.Error
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError, NewErrorResponse(ErrCodeInternal, "An unexpected error occurred", requestID)
	}
	resp := NewErrorResponse(cerr.Kind.String(), cerr.Message, requestID)
	resp.Error.ProviderCode = cerr.Code
	resp.Error.Reauthorize = cerr.Kind.RequiresReauthorization()
	return StatusForKind(cerr.Kind), resp
}
