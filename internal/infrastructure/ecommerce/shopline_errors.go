package ecommerce

import (
	"fmt"
	"net/http"

	"github.com/erp/connhub/internal/domain/connection"
)

// shoplineErrorKinds maps SHOPLINE i18nCode values to error kinds
var shoplineErrorKinds = map[string]connection.ErrorKind{
	"ACCESS_TOKEN_EXPIRED": connection.KindTokenExpired,

	"ACCESS_TOKEN_INVALID": connection.KindTokenRevoked,
	"APP_UNINSTALLED":      connection.KindTokenRevoked,
	"TOKEN_REVOKED":        connection.KindTokenRevoked,

	"REFRESH_TOKEN_EXPIRED":   connection.KindTokenRefreshFailed,
	"TOKEN_REFRESH_FORBIDDEN": connection.KindTokenRefreshFailed,

	"CODE_INVALID":   connection.KindPlatformError,
	"CODE_EXPIRED":   connection.KindPlatformError,
	"SIGN_ERROR":     connection.KindPlatformError,
	"APPKEY_INVALID": connection.KindPlatformError,
	"PARAM_ERROR":    connection.KindPlatformError,
	"RATE_LIMITED":   connection.KindPlatformError,
	"SYSTEM_BUSY":    connection.KindPlatformError,
}

// classifyShoplineCode maps an i18nCode to an error kind
func classifyShoplineCode(code string) connection.ErrorKind {
	if kind, ok := shoplineErrorKinds[code]; ok {
		return kind
	}
	return connection.KindPlatformUnknown
}

// shoplineEnvelopeError converts a failed OAuth envelope to a classified error
func shoplineEnvelopeError(resp *ShoplineResponse, raw string) *connection.Error {
	code := resp.I18nCode
	if code == "" {
		code = fmt.Sprintf("%d", resp.Code)
	}
	message := resp.Message
	if message == "" {
		message = "SHOPLINE request failed"
	}
	return connection.NewPlatformError(classifyShoplineCode(resp.I18nCode), code, message, raw)
}

// shoplineStatusError classifies a failed admin OpenAPI call by its native code, or by HTTP
// status when the body carries none
func shoplineStatusError(status int, apiErr *ShoplineOpenAPIError, raw string) *connection.Error {
	// a native code always wins; unmapped codes stay PLATFORM_UNKNOWN with the code kept
	if apiErr != nil && apiErr.Code != "" {
		message := firstNonEmpty(apiErr.Message, apiErr.Errors, http.StatusText(status))
		return connection.NewPlatformError(classifyShoplineCode(apiErr.Code), apiErr.Code, message, raw)
	}

	code := fmt.Sprintf("HTTP_%d", status)
	message := http.StatusText(status)
	if apiErr != nil {
		message = firstNonEmpty(apiErr.Message, apiErr.Errors, message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return connection.NewPlatformError(connection.KindTokenRevoked, code, message, raw)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return connection.NewPlatformError(connection.KindPlatformError, code, message, raw)
	default:
		return connection.NewPlatformError(connection.KindPlatformUnknown, code, message, raw)
	}
}

// transportError classifies a network failure; the call may succeed later
func transportError(platform connection.PlatformCode, err error) *connection.Error {
	return connection.WrapError(connection.KindPlatformError, fmt.Sprintf("%s request failed", platform.DisplayName()), err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
