package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/interfaces/http/handler"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	var order []string
	r := NewRouter(engine, WithAPIVersion("v2")).Use(func(c *gin.Context) {
		order = append(order, "router")
		c.Next()
	})

	group := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
		order = append(order, "group")
		c.Next()
	})
	group.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	group.PATCH("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	r.Register(group).Setup()

	assert.Equal(t, "test", group.Name())
	assert.Equal(t, "/test", group.Prefix())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, []string{"router", "group"}, order)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v2/test/items/7", nil))
	assert.Equal(t, "7", w.Body.String())
}

func TestMount(t *testing.T) {
	denyAll := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	Mount(engine, Handlers{
		OAuth:       handler.NewOAuthHandler(nil, nil, handler.OAuthConfig{}, nil),
		Connections: handler.NewConnectionHandler(nil, nil, nil),
		Webhooks:    handler.NewWebhookHandler(nil),
		System:      handler.NewSystemHandler("connhub", "test", connection.AllPlatforms(), nil),
	}, Options{
		Auth:    denyAll,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/system/info", http.StatusOK},
		{http.MethodGet, "/swagger/index.html", http.StatusNotFound},
		{http.MethodGet, "/api/v1/connections", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/oauth/shopline/authorize", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/connections/4b9c1a0e-2f55-4b55-9f65-8a4f0d7e2c11/refresh", http.StatusUnauthorized},
		{http.MethodPatch, "/api/v1/connections/4b9c1a0e-2f55-4b55-9f65-8a4f0d7e2c11/items/4b9c1a0e-2f55-4b55-9f65-8a4f0d7e2c12", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/connections/4b9c1a0e-2f55-4b55-9f65-8a4f0d7e2c11/orders/summary", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/webhooks/verify", http.StatusUnauthorized},
		{http.MethodGet, "/oauth/taobao/callback", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMount_SwaggerEnabled(t *testing.T) {
	engine := gin.New()
	Mount(engine, Handlers{
		OAuth:       handler.NewOAuthHandler(nil, nil, handler.OAuthConfig{}, nil),
		Connections: handler.NewConnectionHandler(nil, nil, nil),
		Webhooks:    handler.NewWebhookHandler(nil),
		System:      handler.NewSystemHandler("connhub", "test", nil, nil),
	}, Options{
		Auth:    func(c *gin.Context) { c.Next() },
		Swagger: middleware.SwaggerConfig{Enabled: true},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/connections/{id}/refresh")
}
