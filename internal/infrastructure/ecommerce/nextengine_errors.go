package ecommerce

import (
	"fmt"
	"net/http"

	"github.com/erp/connhub/internal/domain/connection"
)

// nextEngineErrorKinds maps Next Engine error codes to error kinds
var nextEngineErrorKinds = map[string]connection.ErrorKind{
	"002002": connection.KindTokenExpired,
	"002003": connection.KindTokenRefreshFailed,
	"002004": connection.KindTokenRevoked,
	"002007": connection.KindTokenRevoked,

	"001001": connection.KindPlatformError,
	"001002": connection.KindPlatformError,
	"002001": connection.KindPlatformError,
	"003001": connection.KindPlatformError,
	"003002": connection.KindPlatformError,
	"004001": connection.KindPlatformError,
}

// classifyNextEngineCode maps a Next Engine error code to an error kind
func classifyNextEngineCode(code string) connection.ErrorKind {
	if kind, ok := nextEngineErrorKinds[code]; ok {
		return kind
	}
	return connection.KindPlatformUnknown
}

// nextEngineResultError converts a non-success result to a classified error
func nextEngineResultError(resp *NextEngineResponse, raw string) *connection.Error {
	message := resp.Message
	if resp.Result == NextEngineResultRedirect {
		if message == "" {
			message = "Next Engine requires the user to sign in again"
		}
		return connection.NewPlatformError(connection.KindTokenRevoked, resp.Code, message, raw)
	}
	if message == "" {
		message = "Next Engine request failed"
	}
	return connection.NewPlatformError(classifyNextEngineCode(resp.Code), resp.Code, message, raw)
}

// nextEngineStatusError classifies a transport-level HTTP failure
func nextEngineStatusError(status int, raw string) *connection.Error {
	code := fmt.Sprintf("HTTP_%d", status)
	kind := connection.KindPlatformUnknown
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		kind = connection.KindPlatformError
	}
	return connection.NewPlatformError(kind, code, http.StatusText(status), raw)
}
