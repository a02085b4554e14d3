package ecommerce

// ---------------------------------------------------------------------------
// Common SHOPLINE Response Types
// ---------------------------------------------------------------------------

// ShoplineResponse is the envelope of the SHOPLINE OAuth endpoints
type ShoplineResponse struct {
	// Code is 200 on success
	Code int `json:"code"`
	// I18nCode is the symbolic error code
	I18nCode string `json:"i18nCode"`
	// Message is the human-readable message
	Message string `json:"message"`
	// TraceID identifies the request for SHOPLINE support
	TraceID string `json:"traceId,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *ShoplineResponse) IsSuccess() bool {
	return r.Code == 200
}

// ShoplineOpenAPIError is the error body of the admin OpenAPI endpoints
type ShoplineOpenAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  string `json:"errors"`
}

// ---------------------------------------------------------------------------
// OAuth Types
// ---------------------------------------------------------------------------

// ShoplineTokenResponse is the response of token/create and token/refresh
type ShoplineTokenResponse struct {
	ShoplineResponse
	Data *ShoplineTokenData `json:"data,omitempty"`
}

// ShoplineTokenData carries the issued token
type ShoplineTokenData struct {
	AccessToken string `json:"accessToken"`
	// ExpireTime is an RFC3339 timestamp, e.g. 2025-01-01T10:00:00.000+00:00
	ExpireTime string `json:"expireTime"`
	Scope      string `json:"scope"`
}

// ---------------------------------------------------------------------------
// Store Types
// ---------------------------------------------------------------------------

// ShoplineShopResponse is the response of merchants/shop.json
type ShoplineShopResponse struct {
	Data *ShoplineShop `json:"data,omitempty"`
}

// ShoplineShop is the storefront behind a handle
type ShoplineShop struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
	Timezone string `json:"iana_timezone"`
}

// ---------------------------------------------------------------------------
// Order Types
// ---------------------------------------------------------------------------

// ShoplineOrderListResponse is the response of orders.json
type ShoplineOrderListResponse struct {
	Orders []ShoplineOrder `json:"orders"`
}

// ShoplineOrder is the subset of order fields used for summaries
type ShoplineOrder struct {
	ID         string `json:"id"`
	TotalPrice string `json:"total_price"`
	Currency   string `json:"currency"`
	CreatedAt  string `json:"created_at"`
}
