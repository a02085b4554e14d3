package ecommerce

// ---------------------------------------------------------------------------
// Common Next Engine Response Types
// ---------------------------------------------------------------------------

// Next Engine result values
const (
	NextEngineResultSuccess  = "success"
	NextEngineResultError    = "error"
	NextEngineResultRedirect = "redirect"
)

// NextEngineResponse is embedded in every Next Engine response
type NextEngineResponse struct {
	Result  string `json:"result"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// Every call may rotate tokens, so they are echoed back on data APIs too
	AccessToken         string `json:"access_token,omitempty"`
	RefreshToken        string `json:"refresh_token,omitempty"`
	AccessTokenEndDate  string `json:"access_token_end_date,omitempty"`
	RefreshTokenEndDate string `json:"refresh_token_end_date,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *NextEngineResponse) IsSuccess() bool {
	return r.Result == NextEngineResultSuccess
}

// NextEngineListResponse is the response of a search or info API
type NextEngineListResponse[T any] struct {
	NextEngineResponse
	Count string `json:"count,omitempty"`
	Data  []T    `json:"data"`
}

// ---------------------------------------------------------------------------
// OAuth Types
// ---------------------------------------------------------------------------

// NextEngineTokenResponse is the response of api_neauth
type NextEngineTokenResponse struct {
	NextEngineResponse
	CompanyNeID     string `json:"company_ne_id,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	CompanyKanaName string `json:"company_kana_name,omitempty"`
	UID             string `json:"uid,omitempty"`
	PicNeID         string `json:"pic_ne_id,omitempty"`
}

// ---------------------------------------------------------------------------
// Company and Shop Types
// ---------------------------------------------------------------------------

// NextEngineCompany is one row of api_v1_login_company/info
type NextEngineCompany struct {
	CompanyID       string `json:"company_id"`
	CompanyNeID     string `json:"company_ne_id"`
	CompanyName     string `json:"company_name"`
	CompanyKanaName string `json:"company_kana_name"`
}

// NextEngineShop is one row of api_v1_master_shop/search
type NextEngineShop struct {
	ShopID              string `json:"shop_id"`
	ShopName            string `json:"shop_name"`
	ShopAbbreviatedName string `json:"shop_abbreviated_name"`
	ShopMallID          string `json:"shop_mall_id"`
	ShopDeletedFlag     string `json:"shop_deleted_flag"`
}

// IsDeleted returns true if the shop was deleted in Next Engine
func (s *NextEngineShop) IsDeleted() bool {
	return s.ShopDeletedFlag == "1"
}

// ---------------------------------------------------------------------------
// Order Types
// ---------------------------------------------------------------------------

// NextEngineOrder is one row of api_v1_receiveorder_base/search
type NextEngineOrder struct {
	ReceiveOrderID          string `json:"receive_order_id"`
	ReceiveOrderTotalAmount string `json:"receive_order_total_amount"`
	ReceiveOrderDate        string `json:"receive_order_date"`
}
