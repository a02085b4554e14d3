package ecommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/connhub/internal/domain/connection"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

var nextEngineTestNow = time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)

func createTestNextEngineAdapter(t *testing.T, serverURL string) *NextEngineAdapter {
	t.Helper()
	config := NewNextEngineConfig("client-1", "secret-1", "https://hub.example.com/api/v1/oauth/nextengine/callback")
	config.APIBaseURL = serverURL
	config.AuthBaseURL = serverURL
	config.TimeoutSeconds = 5
	config.PageSize = 2

	adapter, err := NewNextEngineAdapter(config, nil)
	require.NoError(t, err)
	adapter.now = func() time.Time { return nextEngineTestNow }
	return adapter
}

func createMockNextEngineServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		handler(w, r)
	}))
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestNextEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *NextEngineConfig
		wantErr error
	}{
		{"valid config", &NextEngineConfig{ClientID: "c", ClientSecret: "s", RedirectURI: "https://x/cb"}, nil},
		{"missing client id", &NextEngineConfig{ClientSecret: "s", RedirectURI: "https://x/cb"}, ErrNextEngineConfigMissingClientID},
		{"missing client secret", &NextEngineConfig{ClientID: "c", RedirectURI: "https://x/cb"}, ErrNextEngineConfigMissingClientSecret},
		{"missing redirect", &NextEngineConfig{ClientID: "c", ClientSecret: "s"}, ErrNextEngineConfigMissingRedirectURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, NextEngineDefaultAPIBaseURL, tt.config.APIBaseURL)
			assert.Equal(t, NextEngineDefaultCorrelationQueryKey, tt.config.CorrelationQueryKey)
		})
	}
}

// ---------------------------------------------------------------------------
// Authorize Tests
// ---------------------------------------------------------------------------

func TestNextEngineAdapter_BuildAuthorizeURL(t *testing.T) {
	adapter, err := NewNextEngineAdapter(NewNextEngineConfig("client-1", "secret-1", "https://hub.example.com/cb"), nil)
	require.NoError(t, err)

	authURL, err := adapter.BuildAuthorizeURL(connection.AuthorizeRequest{CorrelationToken: "tok-1", Handle: "acme"})
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "base.next-engine.org", parsed.Host)
	assert.Equal(t, "/users/sign_in/", parsed.Path)
	assert.Equal(t, "client-1", parsed.Query().Get("client_id"))
	assert.Empty(t, parsed.Query().Get("state"))

	redirect, err := url.Parse(parsed.Query().Get("redirect_uri"))
	require.NoError(t, err)
	assert.Equal(t, "hub.example.com", redirect.Host)
	assert.Equal(t, "tok-1", redirect.Query().Get("ct"))
	assert.Equal(t, "acme", redirect.Query().Get("handle"))

	_, err = adapter.BuildAuthorizeURL(connection.AuthorizeRequest{})
	assert.ErrorIs(t, err, connection.ErrMissingCorrelation)
}

// ---------------------------------------------------------------------------
// Token Tests
// ---------------------------------------------------------------------------

func TestNextEngineAdapter_ExchangeToken(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api_neauth", r.URL.Path)
			assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
			assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
			assert.Equal(t, "uid-1", r.PostForm.Get("uid"))
			assert.Equal(t, "state-1", r.PostForm.Get("state"))
			_, _ = w.Write([]byte(`{
				"result":"success",
				"access_token":"at-1","refresh_token":"rt-1",
				"access_token_end_date":"2025-03-02 12:00:00",
				"refresh_token_end_date":"2025-03-04 12:00:00",
				"company_ne_id":"NE123","company_name":"ＡＣＭＥ株式会社"
			}`))
		})
		defer server.Close()

		adapter := createTestNextEngineAdapter(t, server.URL)
		payload, err := adapter.ExchangeToken(context.Background(), connection.CallbackParams{UID: "uid-1", ProviderState: "state-1"})
		require.NoError(t, err)

		assert.Equal(t, "at-1", payload.AccessToken)
		assert.Equal(t, "rt-1", payload.RefreshToken)
		// 12:00 JST is 03:00 UTC
		assert.True(t, payload.ExpiresAt.Equal(time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC)))
		assert.True(t, payload.RefreshExpiresAt.Equal(time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)))
		assert.Equal(t, "NE123", payload.ExternalAccountID)
		assert.Equal(t, "ACME株式会社", payload.DisplayName)
		assert.Equal(t, "uid-1", payload.Extra[connection.ExtraUID])
		assert.Equal(t, "state-1", payload.Extra[connection.ExtraState])
		assert.Equal(t, "NE123", payload.Extra[connection.ExtraCompanyID])
	})

	t.Run("malformed dates use fallbacks", func(t *testing.T) {
		server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":"success","access_token":"at-1","access_token_end_date":"soon"}`))
		})
		defer server.Close()

		payload, err := createTestNextEngineAdapter(t, server.URL).
			ExchangeToken(context.Background(), connection.CallbackParams{UID: "u", ProviderState: "s"})
		require.NoError(t, err)
		assert.True(t, payload.ExpiresAt.Equal(nextEngineTestNow.Add(24*time.Hour)))
		assert.True(t, payload.RefreshExpiresAt.Equal(nextEngineTestNow.Add(72*time.Hour)))
	})

	t.Run("missing uid", func(t *testing.T) {
		adapter := createTestNextEngineAdapter(t, "http://127.0.0.1:1")
		_, err := adapter.ExchangeToken(context.Background(), connection.CallbackParams{ProviderState: "s"})
		assert.ErrorIs(t, err, connection.ErrMissingCode)
	})
}

func TestNextEngineAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind connection.ErrorKind
		wantCode string
	}{
		{"expired", `{"result":"error","code":"002002","message":"expired"}`, connection.KindTokenExpired, "002002"},
		{"refresh failed", `{"result":"error","code":"002003","message":"refresh failed"}`, connection.KindTokenRefreshFailed, "002003"},
		{"revoked", `{"result":"error","code":"002004","message":"revoked"}`, connection.KindTokenRevoked, "002004"},
		{"revoked 002007", `{"result":"error","code":"002007","message":"stopped"}`, connection.KindTokenRevoked, "002007"},
		{"maintenance", `{"result":"error","code":"003001","message":"busy"}`, connection.KindPlatformError, "003001"},
		{"unknown code", `{"result":"error","code":"999999","message":"??"}`, connection.KindPlatformUnknown, "999999"},
		{"redirect", `{"result":"redirect","message":"sign in"}`, connection.KindTokenRevoked, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			defer server.Close()

			adapter := createTestNextEngineAdapter(t, server.URL)
			_, err := adapter.GetIdentity(context.Background(), "at-1", nil)
			require.Error(t, err)

			classified := connection.AsError(err)
			assert.Equal(t, tt.wantKind, classified.Kind)
			assert.Equal(t, tt.wantCode, classified.Code)
			assert.Equal(t, tt.body, classified.Raw)
		})
	}

	t.Run("server error is platform error", func(t *testing.T) {
		server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		defer server.Close()

		_, err := createTestNextEngineAdapter(t, server.URL).GetIdentity(context.Background(), "at-1", nil)
		assert.ErrorIs(t, err, connection.ErrPlatform)
	})
}

func TestNextEngineAdapter_RefreshToken(t *testing.T) {
	extra := map[string]string{
		connection.ExtraUID:       "uid-1",
		connection.ExtraState:     "state-1",
		connection.ExtraCompanyID: "NE123",
	}

	t.Run("refresh with stored pair", func(t *testing.T) {
		server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
			assert.Equal(t, "uid-1", r.PostForm.Get("uid"))
			_, _ = w.Write([]byte(`{"result":"success","access_token":"at-2","refresh_token":"rt-2","access_token_end_date":"2025-03-02 12:00:00"}`))
		})
		defer server.Close()

		payload, err := createTestNextEngineAdapter(t, server.URL).RefreshToken(context.Background(), "rt-1", extra)
		require.NoError(t, err)
		assert.Equal(t, "at-2", payload.AccessToken)
		assert.Equal(t, "rt-2", payload.RefreshToken)
		assert.Equal(t, "NE123", payload.ExternalAccountID)
	})

	t.Run("missing pair is terminal", func(t *testing.T) {
		adapter := createTestNextEngineAdapter(t, "http://127.0.0.1:1")
		_, err := adapter.RefreshToken(context.Background(), "rt-1", map[string]string{connection.ExtraUID: "uid-1"})
		assert.ErrorIs(t, err, connection.ErrTokenRefreshFailed)

		_, err = adapter.RefreshToken(context.Background(), "", extra)
		assert.ErrorIs(t, err, connection.ErrTokenRefreshFailed)
	})
}

// ---------------------------------------------------------------------------
// Account Tests
// ---------------------------------------------------------------------------

func TestNextEngineAdapter_IdentityAndShops(t *testing.T) {
	server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "at-1", r.PostForm.Get("access_token"))
		switch r.URL.Path {
		case "/api_v1_login_company/info":
			_, _ = w.Write([]byte(`{"result":"success","count":"1","data":[{"company_ne_id":"NE123","company_name":" ｻﾝﾌﾟﾙ商店 "}]}`))
		case "/api_v1_master_shop/search":
			_, _ = w.Write([]byte(`{"result":"success","count":"3","data":[
				{"shop_id":"1","shop_name":"楽天ＳＨＯＰ","shop_mall_id":"2","shop_deleted_flag":"0"},
				{"shop_id":"2","shop_name":"Old","shop_deleted_flag":"1"},
				{"shop_id":"3","shop_name":"Amazon","shop_mall_id":"5","shop_deleted_flag":"0"}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer server.Close()

	adapter := createTestNextEngineAdapter(t, server.URL)

	info, err := adapter.GetIdentity(context.Background(), "at-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "NE123", info.ExternalAccountID)
	assert.Equal(t, "サンプル商店", info.DisplayName)

	shops, err := adapter.ListShops(context.Background(), "at-1", nil)
	require.NoError(t, err)
	require.Len(t, shops, 2)
	assert.Equal(t, "1", shops[0].ExternalResourceID)
	assert.Equal(t, "楽天SHOP", shops[0].DisplayName)
	assert.Equal(t, "3", shops[1].ExternalResourceID)
}

// ---------------------------------------------------------------------------
// Order Tests
// ---------------------------------------------------------------------------

func TestNextEngineAdapter_SummarizeOrders(t *testing.T) {
	var offsets []string
	server := createMockNextEngineServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api_v1_receiveorder_base/search", r.URL.Path)
		assert.Equal(t, "2025-03-01 09:00:00", r.PostForm.Get("receive_order_date-gte"))
		offsets = append(offsets, r.PostForm.Get("offset"))

		switch r.PostForm.Get("offset") {
		case "0":
			_, _ = w.Write([]byte(`{"result":"success","count":"2","data":[
				{"receive_order_id":"1","receive_order_total_amount":"1000"},
				{"receive_order_id":"2","receive_order_total_amount":"2500"}
			]}`))
		default:
			_, _ = w.Write([]byte(`{"result":"success","count":"1","data":[
				{"receive_order_id":"3","receive_order_total_amount":"500"}
			]}`))
		}
	})
	defer server.Close()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	summary, err := createTestNextEngineAdapter(t, server.URL).
		SummarizeOrders(context.Background(), "at-1", nil, from, from.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "2"}, offsets)
	assert.Equal(t, 3, summary.OrderCount)
	assert.True(t, decimal.NewFromInt(4000).Equal(summary.TotalAmount))
	assert.Equal(t, "JPY", summary.Currency)
}
