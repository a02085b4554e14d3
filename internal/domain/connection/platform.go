package connection

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotSupported = errors.New("connection: platform not supported")
	ErrInvalidPlatformCode  = errors.New("connection: invalid platform code")
	ErrMissingCode          = errors.New("connection: authorization code is required")
	ErrMissingCorrelation   = errors.New("connection: correlation token is required")
	ErrInvalidHandle        = errors.New("invalid storefront handle")
)

// ---------------------------------------------------------------------------
// PlatformCode
// ---------------------------------------------------------------------------

// PlatformCode identifies a supported commerce platform
type PlatformCode string

const (
	// PlatformShopline is SHOPLINE. It echoes the caller's state parameter.
	PlatformShopline PlatformCode = "shopline"
	// PlatformNextEngine is Next Engine. It accepts no caller parameters on authorize and
	// issues its own uid/state pair.
	PlatformNextEngine PlatformCode = "nextengine"
)

// AllPlatforms returns every supported platform code in a stable order
func AllPlatforms() []PlatformCode {
	return []PlatformCode{PlatformShopline, PlatformNextEngine}
}

// ParsePlatformCode validates a raw platform code
func ParsePlatformCode(raw string) (PlatformCode, error) {
	code := PlatformCode(raw)
	if !code.IsValid() {
		return "", ErrInvalidPlatformCode
	}
	return code, nil
}

// IsValid returns true if the platform code is supported
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformShopline, PlatformNextEngine:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformShopline:
		return "SHOPLINE"
	case PlatformNextEngine:
		return "Next Engine"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// Adapter value types
// ---------------------------------------------------------------------------

// Well-known keys of provider-specific passthrough fields
const (
	ExtraHandle      = "handle"
	ExtraScope       = "scope"
	ExtraUID         = "uid"
	ExtraState       = "state"
	ExtraCompanyID   = "company_ne_id"
	ExtraCompanyName = "company_name"
)

// AuthorizeRequest holds the input for building a provider authorize URL
type AuthorizeRequest struct {
	// CorrelationToken is the caller's opaque token used to recover the user on callback
	CorrelationToken string
	// Handle is the storefront handle (required by SHOPLINE, optional hint for Next Engine)
	Handle string
}

// CallbackParams holds the provider parameters received on the OAuth callback
type CallbackParams struct {
	Code             string
	State            string
	UID              string
	ProviderState    string
	CorrelationToken string
	Handle           string
	Raw              map[string]string
}

// ParseCallbackParams maps raw callback query values onto CallbackParams.
// The correlation token is read from correlationKey when the provider
// preserved it on the redirect URI, and from the echoed state otherwise.
func ParseCallbackParams(query map[string]string, correlationKey string) CallbackParams {
	params := CallbackParams{
		Code:          query["code"],
		State:         query["state"],
		UID:           query["uid"],
		ProviderState: query["state"],
		Handle:        query[ExtraHandle],
		Raw:           query,
	}
	if token := query[correlationKey]; correlationKey != "" && token != "" {
		params.CorrelationToken = token
	} else {
		params.CorrelationToken = query["state"]
	}
	return params
}

// TokenPayload is the normalized result of a token exchange or refresh.
// Expiry fields are absolute timestamps.
type TokenPayload struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	// ExternalAccountID is the account identifier derivable from the token response alone
	ExternalAccountID string
	// DisplayName is the account display name derivable from the token response alone
	DisplayName string
	Extra       map[string]string
}

// IdentityInfo describes the external account behind an access token
type IdentityInfo struct {
	ExternalAccountID string
	DisplayName       string
}

// ProviderShop is one provider-side sub-resource under an account
type ProviderShop struct {
	ExternalResourceID string
	DisplayName        string
	Metadata           map[string]string
}

// OrderSummary aggregates provider orders over a time range
type OrderSummary struct {
	OrderCount  int
	TotalAmount decimal.Decimal
	Currency    string
	From        time.Time
	To          time.Time
}

// ---------------------------------------------------------------------------
// PlatformAdapter Port
// ---------------------------------------------------------------------------

// PlatformAdapter abstracts one provider's OAuth dialect and account APIs.
// Every error returned by an adapter is an *Error carrying one of the provider-level kinds.
type PlatformAdapter interface {
	// PlatformCode returns the platform code this adapter handles
	PlatformCode() PlatformCode

	// BuildAuthorizeURL builds the URL the user is sent to for consent
	BuildAuthorizeURL(req AuthorizeRequest) (string, error)

	// ExchangeToken exchanges the callback parameters for tokens
	ExchangeToken(ctx context.Context, params CallbackParams) (*TokenPayload, error)

	// RefreshToken obtains new tokens using the stored refresh token and passthrough fields.
	// Providers that cannot refresh return a TOKEN_REFRESH_FAILED error.
	RefreshToken(ctx context.Context, refreshToken string, extra map[string]string) (*TokenPayload, error)

	// GetIdentity resolves the external account and display name
	GetIdentity(ctx context.Context, accessToken string, extra map[string]string) (*IdentityInfo, error)

	// ListShops lists the provider-side shops under the account
	ListShops(ctx context.Context, accessToken string, extra map[string]string) ([]ProviderShop, error)

	// SummarizeOrders counts and totals orders created in [from, to]
	SummarizeOrders(ctx context.Context, accessToken string, extra map[string]string, from, to time.Time) (*OrderSummary, error)
}

// AdapterRegistry resolves adapters by platform code
type AdapterRegistry interface {
	// Get returns the adapter for a platform or ErrPlatformNotSupported
	Get(code PlatformCode) (PlatformAdapter, error)

	// List returns the registered platform codes
	List() []PlatformCode
}
