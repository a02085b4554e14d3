package ecommerce

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/erp/connhub/internal/domain/connection"
)

const nextEngineCurrency = "JPY"

// NextEngineAdapter implements connection.PlatformAdapter for Next Engine
type NextEngineAdapter struct {
	config *NextEngineConfig
	client *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewNextEngineAdapter creates a new Next Engine adapter with the given configuration
func NewNextEngineAdapter(config *NextEngineConfig, logger *zap.Logger) (*NextEngineAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nextengine")

	return &NextEngineAdapter{
		config: config,
		client: newHTTPClient(config.TimeoutSeconds, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// PlatformCode returns the platform code this adapter handles
func (a *NextEngineAdapter) PlatformCode() connection.PlatformCode {
	return connection.PlatformNextEngine
}

// ---------------------------------------------------------------------------
// OAuth Operations
// ---------------------------------------------------------------------------

// BuildAuthorizeURL builds the sign-in URL. The sign-in page accepts only client_id and
// redirect_uri, so the correlation token rides inside the redirect URI.
func (a *NextEngineAdapter) BuildAuthorizeURL(req connection.AuthorizeRequest) (string, error) {
	if req.CorrelationToken == "" {
		return "", connection.ErrMissingCorrelation
	}

	redirect, err := url.Parse(a.config.RedirectURI)
	if err != nil {
		return "", err
	}
	query := redirect.Query()
	query.Set(a.config.CorrelationQueryKey, req.CorrelationToken)
	if req.Handle != "" {
		query.Set(connection.ExtraHandle, req.Handle)
	}
	redirect.RawQuery = query.Encode()

	params := url.Values{}
	params.Set("client_id", a.config.ClientID)
	params.Set("redirect_uri", redirect.String())

	return a.config.AuthBaseURL + "/users/sign_in/?" + params.Encode(), nil
}

// ExchangeToken exchanges the uid/state pair issued by Next Engine for tokens
func (a *NextEngineAdapter) ExchangeToken(ctx context.Context, params connection.CallbackParams) (*connection.TokenPayload, error) {
	if params.UID == "" || params.ProviderState == "" {
		return nil, connection.WrapError(connection.KindPlatformError, "uid or state missing from callback", connection.ErrMissingCode)
	}

	tokenResp, err := a.doNeauth(ctx, map[string]string{
		"uid":   params.UID,
		"state": params.ProviderState,
	})
	if err != nil {
		return nil, err
	}
	return a.toTokenPayload(tokenResp, params.UID, params.ProviderState), nil
}

// RefreshToken obtains new tokens with the stored uid/state pair and refresh token
func (a *NextEngineAdapter) RefreshToken(ctx context.Context, refreshToken string, extra map[string]string) (*connection.TokenPayload, error) {
	uid := extra[connection.ExtraUID]
	state := extra[connection.ExtraState]
	if uid == "" || state == "" || refreshToken == "" {
		return nil, connection.NewError(connection.KindTokenRefreshFailed, "stored connection lacks uid, state or refresh token")
	}

	tokenResp, err := a.doNeauth(ctx, map[string]string{
		"uid":           uid,
		"state":         state,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	payload := a.toTokenPayload(tokenResp, uid, state)
	if payload.ExternalAccountID == "" {
		payload.ExternalAccountID = extra[connection.ExtraCompanyID]
	}
	return payload, nil
}

func (a *NextEngineAdapter) doNeauth(ctx context.Context, form map[string]string) (*NextEngineTokenResponse, error) {
	form["client_id"] = a.config.ClientID
	form["client_secret"] = a.config.ClientSecret

	var tokenResp NextEngineTokenResponse
	if err := a.post(ctx, "/api_neauth", form, &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, connection.NewPlatformError(connection.KindPlatformUnknown, "", "token response carried no access token", "")
	}
	return &tokenResp, nil
}

func (a *NextEngineAdapter) toTokenPayload(resp *NextEngineTokenResponse, uid, state string) *connection.TokenPayload {
	now := a.now()
	layouts := []string{nextEngineDateLayout}

	expiresAt, ok := connection.ResolveExpiry(resp.AccessTokenEndDate, layouts, nextEngineLocation, connection.DefaultAccessTokenTTL, now)
	if !ok {
		a.logger.Warn("unparseable access token end date, using fallback", zap.String("raw", resp.AccessTokenEndDate))
	}
	refreshExpiresAt, ok := connection.ResolveExpiry(resp.RefreshTokenEndDate, layouts, nextEngineLocation, connection.DefaultRefreshTokenTTL, now)
	if !ok {
		a.logger.Warn("unparseable refresh token end date, using fallback", zap.String("raw", resp.RefreshTokenEndDate))
	}

	extra := map[string]string{
		connection.ExtraUID:   uid,
		connection.ExtraState: state,
	}
	if resp.CompanyNeID != "" {
		extra[connection.ExtraCompanyID] = resp.CompanyNeID
	}
	if resp.CompanyName != "" {
		extra[connection.ExtraCompanyName] = normalizeName(resp.CompanyName)
	}

	return &connection.TokenPayload{
		AccessToken:       resp.AccessToken,
		RefreshToken:      resp.RefreshToken,
		ExpiresAt:         expiresAt,
		RefreshExpiresAt:  refreshExpiresAt,
		ExternalAccountID: resp.CompanyNeID,
		DisplayName:       normalizeName(resp.CompanyName),
		Extra:             extra,
	}
}

// ---------------------------------------------------------------------------
// Account Operations
// ---------------------------------------------------------------------------

// GetIdentity resolves the company behind the access token
func (a *NextEngineAdapter) GetIdentity(ctx context.Context, accessToken string, _ map[string]string) (*connection.IdentityInfo, error) {
	var list NextEngineListResponse[NextEngineCompany]
	if err := a.post(ctx, "/api_v1_login_company/info", map[string]string{"access_token": accessToken}, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 || list.Data[0].CompanyNeID == "" {
		return nil, connection.NewPlatformError(connection.KindPlatformUnknown, "", "company info carried no company", "")
	}

	company := list.Data[0]
	return &connection.IdentityInfo{
		ExternalAccountID: company.CompanyNeID,
		DisplayName:       normalizeName(company.CompanyName),
	}, nil
}

// ListShops lists the shops registered under the company, skipping deleted ones
func (a *NextEngineAdapter) ListShops(ctx context.Context, accessToken string, _ map[string]string) ([]connection.ProviderShop, error) {
	var list NextEngineListResponse[NextEngineShop]
	err := a.post(ctx, "/api_v1_master_shop/search", map[string]string{
		"access_token": accessToken,
		"fields":       "shop_id,shop_name,shop_abbreviated_name,shop_mall_id,shop_deleted_flag",
	}, &list)
	if err != nil {
		return nil, err
	}

	shops := make([]connection.ProviderShop, 0, len(list.Data))
	for _, s := range list.Data {
		if s.IsDeleted() || s.ShopID == "" {
			continue
		}
		shops = append(shops, connection.ProviderShop{
			ExternalResourceID: s.ShopID,
			DisplayName:        normalizeName(s.ShopName),
			Metadata: map[string]string{
				"abbreviated_name": normalizeName(s.ShopAbbreviatedName),
				"mall_id":          s.ShopMallID,
			},
		})
	}
	return shops, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// SummarizeOrders counts and totals the orders received in [from, to]
func (a *NextEngineAdapter) SummarizeOrders(ctx context.Context, accessToken string, _ map[string]string, from, to time.Time) (*connection.OrderSummary, error) {
	summary := &connection.OrderSummary{
		TotalAmount: decimal.Zero,
		Currency:    nextEngineCurrency,
		From:        from,
		To:          to,
	}

	limit := a.config.PageSize
	for page := 0; page < a.config.MaxOrderPages; page++ {
		var list NextEngineListResponse[NextEngineOrder]
		err := a.post(ctx, "/api_v1_receiveorder_base/search", map[string]string{
			"access_token":                     accessToken,
			"fields":                           "receive_order_id,receive_order_total_amount,receive_order_date",
			"receive_order_date-gte":           from.In(nextEngineLocation).Format(nextEngineDateLayout),
			"receive_order_date-lte":           to.In(nextEngineLocation).Format(nextEngineDateLayout),
			"receive_order_cancel_type_id-neq": "1",
			"offset":                           strconv.Itoa(page * limit),
			"limit":                            strconv.Itoa(limit),
		}, &list)
		if err != nil {
			return nil, err
		}

		for _, order := range list.Data {
			amount, err := decimal.NewFromString(order.ReceiveOrderTotalAmount)
			if err != nil {
				a.logger.Warn("skipping order with unparseable total",
					zap.String("order_id", order.ReceiveOrderID),
					zap.String("total", order.ReceiveOrderTotalAmount),
				)
				continue
			}
			summary.OrderCount++
			summary.TotalAmount = summary.TotalAmount.Add(amount)
		}

		if len(list.Data) < limit {
			return summary, nil
		}
	}

	a.logger.Warn("order summary truncated at page cap", zap.Int("max_pages", a.config.MaxOrderPages))
	return summary, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// post sends a form request and decodes a successful response into out
func (a *NextEngineAdapter) post(ctx context.Context, path string, form map[string]string, out any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(a.config.APIBaseURL + path)
	if err != nil {
		return transportError(connection.PlatformNextEngine, err)
	}

	raw := resp.String()
	if resp.IsError() {
		return nextEngineStatusError(resp.StatusCode(), raw)
	}

	var base NextEngineResponse
	if err := json.Unmarshal(resp.Body(), &base); err != nil {
		return connection.NewPlatformError(connection.KindPlatformUnknown, "", "malformed response", raw)
	}
	if !base.IsSuccess() {
		return nextEngineResultError(&base, raw)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return connection.NewPlatformError(connection.KindPlatformUnknown, "", "malformed response", raw)
	}
	return nil
}

// normalizeName folds full-width characters and trims whitespace
func normalizeName(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// Ensure NextEngineAdapter implements PlatformAdapter
var _ connection.PlatformAdapter = (*NextEngineAdapter)(nil)
