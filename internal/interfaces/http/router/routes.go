package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/erp/connhub/internal/interfaces/http/handler"
	"github.com/erp/connhub/internal/interfaces/http/middleware"

	_ "github.com/erp/connhub/docs"
)

// Handlers are the endpoint handlers served by connhub
type Handlers struct {
	OAuth       *handler.OAuthHandler
	Connections *handler.ConnectionHandler
	Webhooks    *handler.WebhookHandler
	System      *handler.SystemHandler
}

// Options configure the infrastructure routes
type Options struct {
	// Auth authenticates every /api route except system info
	Auth gin.HandlerFunc
	// Metrics serves /metrics when set
	Metrics http.Handler
	Swagger middleware.SwaggerConfig
	// Profiling labels API samples with their route
	Profiling bool
}

// Mount registers every connhub route on engine
func Mount(engine *gin.Engine, h Handlers, opts Options) {
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	engine.GET("/swagger/*any", middleware.SwaggerProtection(opts.Swagger), ginSwagger.WrapHandler(swaggerFiles.Handler))

	// provider redirects carry no credentials of their own
	engine.GET("/oauth/:platform/callback", middleware.Profiling(opts.Profiling), h.OAuth.Callback)

	r := NewRouter(engine, WithAPIVersion("v1")).Use(middleware.Profiling(opts.Profiling))

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.Info)

	oauth := NewDomainGroup("oauth", "/oauth").Use(opts.Auth)
	oauth.POST("/:platform/authorize", h.OAuth.Authorize)

	connections := NewDomainGroup("connections", "/connections").Use(opts.Auth)
	connections.GET("", h.Connections.List)
	connections.POST("/:id/refresh", h.Connections.Refresh)
	connections.PATCH("/:id/items/:item_id", h.Connections.SetItemStatus)
	connections.GET("/:id/orders/summary", h.Connections.OrdersSummary)

	webhooks := NewDomainGroup("webhooks", "/webhooks").Use(opts.Auth)
	webhooks.POST("/verify", h.Webhooks.Verify)

	r.Register(system).Register(oauth).Register(connections).Register(webhooks)
	r.Setup()
}
