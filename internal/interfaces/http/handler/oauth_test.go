package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/interfaces/http/dto"
)

var testOAuthConfig = OAuthConfig{
	CompletionURL:  "https://app.example.com/connections/done?tab=shops",
	SessionCookie:  "connhub_session",
	CorrelationKey: "ct",
}

func newOAuthEngine(h *OAuthHandler) *gin.Engine {
	r := newTestEngine()
	r.POST("/api/v1/oauth/:platform/authorize", h.Authorize)
	r.GET("/oauth/:platform/callback", h.Callback)
	return r
}

func TestOAuthHandler_Authorize(t *testing.T) {
	expires := time.Date(2026, 10, 17, 12, 10, 0, 0, time.UTC)

	tests := []struct {
		name       string
		platform   string
		body       string
		cookie     string
		bearer     string
		setup      func(m *mockAuthorizer)
		wantStatus int
		wantCode   string
	}{
		{
			name:     "shopline with handle",
			platform: "shopline",
			body:     `{"handle":"acme"}`,
			bearer:   "jwt",
			setup: func(m *mockAuthorizer) {
				m.On("BuildAuthorizeURL", mock.Anything, appconn.AuthorizeInput{
					Platform: connection.PlatformShopline,
					UserID:   testUserID,
					Handle:   "acme",
				}).Return(&appconn.AuthorizeResult{URL: "https://acme.myshopline.com/admin/oauth-web/", ExpiresAt: expires}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:     "nextengine with session cookie and no body",
			platform: "nextengine",
			cookie:   "sess-1",
			setup: func(m *mockAuthorizer) {
				m.On("BuildAuthorizeURL", mock.Anything, appconn.AuthorizeInput{
					Platform:  connection.PlatformNextEngine,
					UserID:    testUserID,
					SessionID: "sess-1",
				}).Return(&appconn.AuthorizeResult{URL: "https://base.next-engine.org/users/sign_in/", ExpiresAt: expires}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown platform",
			platform:   "taobao",
			setup:      func(*mockAuthorizer) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
		{
			name:     "missing handle",
			platform: "shopline",
			setup: func(m *mockAuthorizer) {
				m.On("BuildAuthorizeURL", mock.Anything, mock.Anything).
					Return(nil, connection.ErrInvalidHandle)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockAuthorizer)
			tt.setup(m)
			r := newOAuthEngine(NewOAuthHandler(m, new(mockCallbacks), testOAuthConfig, nil))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/"+tt.platform+"/authorize", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "connhub_session", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			var resp struct {
				Success bool                  `json:"success"`
				Data    dto.AuthorizeResponse `json:"data"`
				Error   *dto.ErrorInfo        `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			} else {
				assert.True(t, resp.Success)
				assert.Equal(t, tt.platform, resp.Data.Platform)
				assert.NotEmpty(t, resp.Data.AuthorizeURL)
				assert.True(t, expires.Equal(resp.Data.ExpiresAt))
			}
			m.AssertExpectations(t)
		})
	}
}

func TestOAuthHandler_Callback(t *testing.T) {
	connID := uuid.New()

	tests := []struct {
		name       string
		path       string
		setup      func(m *mockCallbacks)
		wantQuery  map[string]string
		noCallback bool
	}{
		{
			name: "shopline success uses echoed state",
			path: "/oauth/shopline/callback?code=abc&state=sealed-1&handle=acme",
			setup: func(m *mockCallbacks) {
				m.On("HandleCallback", mock.Anything, connection.PlatformShopline,
					mock.MatchedBy(func(p connection.CallbackParams) bool {
						return p.Code == "abc" && p.CorrelationToken == "sealed-1" && p.Handle == "acme"
					}),
					appconn.RequestAuth{},
				).Return(&appconn.CallbackResult{ConnectionID: connID, Platform: connection.PlatformShopline, DisplayName: "Acme Store"}, nil)
			},
			wantQuery: map[string]string{
				"status":        "success",
				"platform":      "shopline",
				"connection_id": connID.String(),
				"display_name":  "Acme Store",
				"tab":           "shops",
			},
		},
		{
			name: "nextengine correlation from redirect key",
			path: "/oauth/nextengine/callback?uid=u-1&state=ne-state&ct=sealed-2",
			setup: func(m *mockCallbacks) {
				m.On("HandleCallback", mock.Anything, connection.PlatformNextEngine,
					mock.MatchedBy(func(p connection.CallbackParams) bool {
						return p.UID == "u-1" && p.ProviderState == "ne-state" && p.CorrelationToken == "sealed-2"
					}),
					appconn.RequestAuth{},
				).Return(&appconn.CallbackResult{ConnectionID: connID, Platform: connection.PlatformNextEngine}, nil)
			},
			wantQuery: map[string]string{"status": "success", "platform": "nextengine"},
		},
		{
			name: "identity failure redirects with kind",
			path: "/oauth/shopline/callback?code=abc&state=bad",
			setup: func(m *mockCallbacks) {
				m.On("HandleCallback", mock.Anything, connection.PlatformShopline, mock.Anything, mock.Anything).
					Return(nil, connection.ErrIdentityUnresolved)
			},
			wantQuery: map[string]string{
				"status":  "error",
				"code":    "IDENTITY_UNRESOLVED",
				"message": connection.ErrIdentityUnresolved.Message,
			},
		},
		{
			name:       "unsupported platform",
			path:       "/oauth/taobao/callback?code=abc",
			setup:      func(*mockCallbacks) {},
			wantQuery:  map[string]string{"status": "error", "code": dto.ErrCodePlatformNotSupported},
			noCallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockCallbacks)
			tt.setup(m)
			r := newOAuthEngine(NewOAuthHandler(new(mockAuthorizer), m, testOAuthConfig, nil))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusFound, w.Code)
			loc, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "app.example.com", loc.Host)
			assert.Equal(t, "/connections/done", loc.Path)
			for k, v := range tt.wantQuery {
				assert.Equal(t, v, loc.Query().Get(k), k)
			}
			assert.NotContains(t, loc.RawQuery, "sealed")
			if tt.noCallback {
				m.AssertNotCalled(t, "HandleCallback", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestOAuthHandler_CallbackForwardsCredentials(t *testing.T) {
	m := new(mockCallbacks)
	m.On("HandleCallback", mock.Anything, connection.PlatformNextEngine, mock.Anything,
		appconn.RequestAuth{Bearer: "jwt", SessionID: "sess-9"},
	).Return(&appconn.CallbackResult{ConnectionID: uuid.New(), Platform: connection.PlatformNextEngine}, nil)
	r := newOAuthEngine(NewOAuthHandler(new(mockAuthorizer), m, testOAuthConfig, nil))

	req := httptest.NewRequest(http.MethodGet, "/oauth/nextengine/callback?uid=u&state=s", nil)
	req.Header.Set("Authorization", "Bearer jwt")
	req.AddCookie(&http.Cookie{Name: "connhub_session", Value: "sess-9"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	m.AssertExpectations(t)
}

func TestOAuthHandler_CallbackWithoutCompletionURL(t *testing.T) {
	m := new(mockCallbacks)
	m.On("HandleCallback", mock.Anything, connection.PlatformShopline, mock.Anything, mock.Anything).
		Return(nil, connection.NewPlatformError(connection.KindTokenRevoked, "E401", "grant revoked", `{"raw":"body"}`))
	cfg := testOAuthConfig
	cfg.CompletionURL = ""
	r := newOAuthEngine(NewOAuthHandler(new(mockAuthorizer), m, cfg, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/shopline/callback?code=c&state=s", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REVOKED")
	assert.NotContains(t, w.Body.String(), "raw")
}

func TestOAuthHandler_CallbackSuccessWithoutCompletionURL(t *testing.T) {
	connID := uuid.New()
	m := new(mockCallbacks)
	m.On("HandleCallback", mock.Anything, connection.PlatformNextEngine, mock.Anything, mock.Anything).
		Return(&appconn.CallbackResult{ConnectionID: connID, Platform: connection.PlatformNextEngine, DisplayName: "Acme KK"}, nil)
	cfg := testOAuthConfig
	cfg.CompletionURL = ""
	r := newOAuthEngine(NewOAuthHandler(new(mockAuthorizer), m, cfg, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/nextengine/callback?uid=u&state=s", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), connID.String())
	assert.Contains(t, w.Body.String(), `"display_name":"Acme KK"`)
}
