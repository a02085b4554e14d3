package ecommerce

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
)

// shoplineExpiryLayouts are the accepted formats of expireTime
var shoplineExpiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	time.RFC3339,
}

var shoplineNextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// ShoplineAdapter implements connection.PlatformAdapter for SHOPLINE
type ShoplineAdapter struct {
	config *ShoplineConfig
	client *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewShoplineAdapter creates a new SHOPLINE adapter with the given configuration
func NewShoplineAdapter(config *ShoplineConfig, logger *zap.Logger) (*ShoplineAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("shopline")

	return &ShoplineAdapter{
		config: config,
		client: newHTTPClient(config.TimeoutSeconds, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// PlatformCode returns the platform code this adapter handles
func (a *ShoplineAdapter) PlatformCode() connection.PlatformCode {
	return connection.PlatformShopline
}

// ---------------------------------------------------------------------------
// OAuth Operations
// ---------------------------------------------------------------------------

// BuildAuthorizeURL builds the consent URL. SHOPLINE echoes state, so the
// correlation token travels as state.
func (a *ShoplineAdapter) BuildAuthorizeURL(req connection.AuthorizeRequest) (string, error) {
	handle, err := normalizeHandle(req.Handle)
	if err != nil {
		return "", err
	}
	if req.CorrelationToken == "" {
		return "", connection.ErrMissingCorrelation
	}

	params := url.Values{}
	params.Set("appKey", a.config.AppKey)
	params.Set("responseType", "code")
	params.Set("scope", strings.Join(a.config.Scopes, ","))
	params.Set("redirectUri", a.config.RedirectURI)
	params.Set("state", req.CorrelationToken)

	// the authorize page is a client-side route, so the query lives after the fragment
	return a.config.StoreBaseURL(handle) + "/admin/oauth-web/#/oauth/authorize?" + params.Encode(), nil
}

// ExchangeToken exchanges the authorization code for an access token
func (a *ShoplineAdapter) ExchangeToken(ctx context.Context, params connection.CallbackParams) (*connection.TokenPayload, error) {
	if params.Code == "" {
		return nil, connection.WrapError(connection.KindPlatformError, "authorization code missing from callback", connection.ErrMissingCode)
	}
	handle, err := normalizeHandle(params.Handle)
	if err != nil {
		return nil, connection.WrapError(connection.KindPlatformError, "storefront handle missing from callback", err)
	}
	if err := a.verifyCallback(params.Raw); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"code": params.Code})
	if err != nil {
		return nil, connection.WrapError(connection.KindPlatformUnknown, "failed to encode token request", err)
	}

	data, err := a.doTokenRequest(ctx, handle, "/admin/oauth/token/create", string(body))
	if err != nil {
		return nil, err
	}
	return a.toTokenPayload(handle, data), nil
}

// RefreshToken re-issues the access token of a storefront. SHOPLINE has no refresh token;
// the storefront handle identifies the grant.
func (a *ShoplineAdapter) RefreshToken(ctx context.Context, _ string, extra map[string]string) (*connection.TokenPayload, error) {
	handle, err := normalizeHandle(extra[connection.ExtraHandle])
	if err != nil {
		return nil, connection.WrapError(connection.KindTokenRefreshFailed, "stored connection has no storefront handle", err)
	}

	data, err := a.doTokenRequest(ctx, handle, "/admin/oauth/token/refresh", "")
	if err != nil {
		return nil, err
	}
	return a.toTokenPayload(handle, data), nil
}

// verifyCallback checks the callback signature when SHOPLINE supplied one
func (a *ShoplineAdapter) verifyCallback(raw map[string]string) error {
	sign, ok := raw["sign"]
	if !ok || sign == "" {
		return nil
	}
	expected := a.config.SignQuery(raw)
	if !hmac.Equal([]byte(strings.ToLower(sign)), []byte(expected)) {
		return connection.NewPlatformError(connection.KindPlatformError, "SIGN_ERROR", "callback signature mismatch", "")
	}
	return nil
}

// doTokenRequest sends a signed request to a token endpoint and unwraps the envelope
func (a *ShoplineAdapter) doTokenRequest(ctx context.Context, handle, path, body string) (*ShoplineTokenData, error) {
	timestamp := strconv.FormatInt(a.now().UnixMilli(), 10)

	req := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("appkey", a.config.AppKey).
		SetHeader("timestamp", timestamp).
		SetHeader("sign", a.config.Sign(body, timestamp))
	if body != "" {
		req.SetBody(body)
	}

	resp, err := req.Post(a.config.StoreBaseURL(handle) + path)
	if err != nil {
		return nil, transportError(connection.PlatformShopline, err)
	}

	raw := resp.String()
	var tokenResp ShoplineTokenResponse
	if err := json.Unmarshal(resp.Body(), &tokenResp); err != nil {
		if resp.IsError() {
			return nil, shoplineStatusError(resp.StatusCode(), nil, raw)
		}
		return nil, connection.NewPlatformError(connection.KindPlatformUnknown, "", "malformed token response", raw)
	}
	if !tokenResp.IsSuccess() {
		return nil, shoplineEnvelopeError(&tokenResp.ShoplineResponse, raw)
	}
	if tokenResp.Data == nil || tokenResp.Data.AccessToken == "" {
		return nil, connection.NewPlatformError(connection.KindPlatformUnknown, "", "token response carried no access token", raw)
	}
	return tokenResp.Data, nil
}

func (a *ShoplineAdapter) toTokenPayload(handle string, data *ShoplineTokenData) *connection.TokenPayload {
	now := a.now()
	expiresAt, ok := connection.ResolveExpiry(data.ExpireTime, shoplineExpiryLayouts, time.UTC, connection.DefaultAccessTokenTTL, now)
	if !ok {
		a.logger.Warn("unparseable token expiry, using fallback",
			zap.String("handle", handle),
			zap.String("expire_time", data.ExpireTime),
		)
	}
	refreshExpiresAt, _ := connection.ResolveExpiry("", nil, time.UTC, connection.DefaultRefreshTokenTTL, now)

	extra := map[string]string{connection.ExtraHandle: handle}
	if data.Scope != "" {
		extra[connection.ExtraScope] = data.Scope
	}

	return &connection.TokenPayload{
		AccessToken:       data.AccessToken,
		ExpiresAt:         expiresAt,
		RefreshExpiresAt:  refreshExpiresAt,
		ExternalAccountID: handle,
		Extra:             extra,
	}
}

// ---------------------------------------------------------------------------
// Account Operations
// ---------------------------------------------------------------------------

// GetIdentity resolves the storefront behind the access token
func (a *ShoplineAdapter) GetIdentity(ctx context.Context, accessToken string, extra map[string]string) (*connection.IdentityInfo, error) {
	handle, shop, err := a.fetchShop(ctx, accessToken, extra)
	if err != nil {
		return nil, err
	}
	return &connection.IdentityInfo{
		ExternalAccountID: handle,
		DisplayName:       strings.TrimSpace(shop.Name),
	}, nil
}

// ListShops returns the storefront itself; a SHOPLINE grant covers exactly one store
func (a *ShoplineAdapter) ListShops(ctx context.Context, accessToken string, extra map[string]string) ([]connection.ProviderShop, error) {
	handle, shop, err := a.fetchShop(ctx, accessToken, extra)
	if err != nil {
		return nil, err
	}

	resourceID := shop.ID
	if resourceID == "" {
		resourceID = handle
	}
	name := strings.TrimSpace(shop.Name)
	if name == "" {
		name = handle
	}

	return []connection.ProviderShop{{
		ExternalResourceID: resourceID,
		DisplayName:        name,
		Metadata: map[string]string{
			"handle":   handle,
			"domain":   shop.Domain,
			"currency": shop.Currency,
			"timezone": shop.Timezone,
		},
	}}, nil
}

func (a *ShoplineAdapter) fetchShop(ctx context.Context, accessToken string, extra map[string]string) (string, *ShoplineShop, error) {
	handle, err := normalizeHandle(extra[connection.ExtraHandle])
	if err != nil {
		return "", nil, connection.WrapError(connection.KindPlatformError, "storefront handle unknown", err)
	}

	resp, err := a.adminRequest(ctx, accessToken).
		Get(a.openAPIURL(handle, "merchants/shop.json"))
	if err != nil {
		return "", nil, transportError(connection.PlatformShopline, err)
	}
	if resp.IsError() {
		return "", nil, a.openAPIError(resp)
	}

	var shopResp ShoplineShopResponse
	if err := json.Unmarshal(resp.Body(), &shopResp); err != nil || shopResp.Data == nil {
		return "", nil, connection.NewPlatformError(connection.KindPlatformUnknown, "", "malformed shop response", resp.String())
	}
	return handle, shopResp.Data, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// SummarizeOrders counts and totals the orders created in [from, to]
func (a *ShoplineAdapter) SummarizeOrders(ctx context.Context, accessToken string, extra map[string]string, from, to time.Time) (*connection.OrderSummary, error) {
	handle, err := normalizeHandle(extra[connection.ExtraHandle])
	if err != nil {
		return nil, connection.WrapError(connection.KindPlatformError, "storefront handle unknown", err)
	}

	summary := &connection.OrderSummary{
		TotalAmount: decimal.Zero,
		From:        from,
		To:          to,
	}

	query := url.Values{}
	query.Set("created_at_min", from.UTC().Format(time.RFC3339))
	query.Set("created_at_max", to.UTC().Format(time.RFC3339))
	query.Set("status", "any")
	query.Set("limit", "100")
	next := a.openAPIURL(handle, "orders.json") + "?" + query.Encode()

	for page := 0; next != "" && page < a.config.MaxOrderPages; page++ {
		resp, err := a.adminRequest(ctx, accessToken).Get(next)
		if err != nil {
			return nil, transportError(connection.PlatformShopline, err)
		}
		if resp.IsError() {
			return nil, a.openAPIError(resp)
		}

		var list ShoplineOrderListResponse
		if err := json.Unmarshal(resp.Body(), &list); err != nil {
			return nil, connection.NewPlatformError(connection.KindPlatformUnknown, "", "malformed order list response", resp.String())
		}

		for _, order := range list.Orders {
			amount, err := decimal.NewFromString(order.TotalPrice)
			if err != nil {
				a.logger.Warn("skipping order with unparseable total",
					zap.String("order_id", order.ID),
					zap.String("total_price", order.TotalPrice),
				)
				continue
			}
			summary.OrderCount++
			summary.TotalAmount = summary.TotalAmount.Add(amount)
			if summary.Currency == "" {
				summary.Currency = order.Currency
			}
		}

		next = parseNextLink(resp.Header().Get("Link"))
	}

	if next != "" {
		a.logger.Warn("order summary truncated at page cap",
			zap.String("handle", handle),
			zap.Int("max_pages", a.config.MaxOrderPages),
		)
	}
	return summary, nil
}

// parseNextLink extracts the rel="next" URL from a Link header
func parseNextLink(header string) string {
	match := shoplineNextLinkPattern.FindStringSubmatch(header)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *ShoplineAdapter) adminRequest(ctx context.Context, accessToken string) *resty.Request {
	return a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetAuthToken(accessToken)
}

func (a *ShoplineAdapter) openAPIURL(handle, resource string) string {
	return a.config.StoreBaseURL(handle) + "/admin/openapi/" + a.config.APIVersion + "/" + resource
}

func (a *ShoplineAdapter) openAPIError(resp *resty.Response) *connection.Error {
	var apiErr ShoplineOpenAPIError
	if err := json.Unmarshal(resp.Body(), &apiErr); err != nil {
		return shoplineStatusError(resp.StatusCode(), nil, resp.String())
	}
	return shoplineStatusError(resp.StatusCode(), &apiErr, resp.String())
}

// Ensure ShoplineAdapter implements PlatformAdapter
var _ connection.PlatformAdapter = (*ShoplineAdapter)(nil)
