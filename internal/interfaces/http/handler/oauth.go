package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/logger"
	"github.com/erp/connhub/internal/interfaces/http/dto"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
)

// Authorizer starts authorizations
type Authorizer interface {
	BuildAuthorizeURL(ctx context.Context, in appconn.AuthorizeInput) (*appconn.AuthorizeResult, error)
}

// CallbackCompleter finishes authorizations from provider callbacks
type CallbackCompleter interface {
	HandleCallback(
		ctx context.Context,
		platform connection.PlatformCode,
		params connection.CallbackParams,
		reqAuth appconn.RequestAuth,
	) (*appconn.CallbackResult, error)
}

// OAuthConfig configures the OAuth handler
type OAuthConfig struct {
	// CompletionURL is where the browser lands after the callback
	CompletionURL string
	// SessionCookie is the cookie carrying the caller's session
	SessionCookie string
	// CorrelationKey is the redirect URI query key that carries the correlation
	// token for providers that do not echo state. Empty means state only.
	CorrelationKey string
}

// OAuthHandler starts authorizations and receives provider callbacks
type OAuthHandler struct {
	BaseHandler
	authorizer Authorizer
	callbacks  CallbackCompleter
	cfg        OAuthConfig
	logger     *zap.Logger
}

// NewOAuthHandler creates an OAuthHandler
func NewOAuthHandler(authorizer Authorizer, callbacks CallbackCompleter, cfg OAuthConfig, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{
		authorizer: authorizer,
		callbacks:  callbacks,
		cfg:        cfg,
		logger:     logger,
	}
}

// Authorize godoc
// @ID           authorizeConnection
// @Summary      Start an authorization
// @Description  Returns the provider consent URL for the authenticated user
// @Tags         oauth
// @Accept       json
// @Produce      json
// @Param        platform path string true "Platform code" Enums(shopline, nextengine)
// @Param        request body dto.AuthorizeRequest false "Authorization options"
// @Success      200 {object} dto.Response{data=dto.AuthorizeResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /oauth/{platform}/authorize [post]
func (h *OAuthHandler) Authorize(c *gin.Context) {
	var uri dto.PlatformURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.AuthorizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithBindingError(c, err)
			return
		}
	}

	// a cookie session is sealed as-is so the callback can resolve it again
	bearer, session := middleware.Credentials(c, h.cfg.SessionCookie)
	if bearer != "" {
		session = ""
	}

	result, err := h.authorizer.BuildAuthorizeURL(c.Request.Context(), appconn.AuthorizeInput{
		Platform:  connection.PlatformCode(uri.Platform),
		UserID:    middleware.GetUserID(c),
		SessionID: session,
		Handle:    req.Handle,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.AuthorizeResponse{
		Platform:     uri.Platform,
		AuthorizeURL: result.URL,
		ExpiresAt:    result.ExpiresAt.UTC(),
	})
}

// Callback godoc
// @ID           oauthCallback
// @Summary      Provider OAuth callback
// @Description  Completes an authorization and redirects to the completion page
// @Tags         oauth
// @Param        platform path string true "Platform code" Enums(shopline, nextengine)
// @Success      302
// @Router       /oauth/{platform}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	platform, err := connection.ParsePlatformCode(c.Param("platform"))
	if err != nil {
		h.redirect(c, url.Values{
			"status":  {"error"},
			"code":    {dto.ErrCodePlatformNotSupported},
			"message": {"platform not supported"},
		})
		return
	}

	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	params := connection.ParseCallbackParams(query, h.cfg.CorrelationKey)

	bearer, session := middleware.Credentials(c, h.cfg.SessionCookie)
	ctx := logger.WithConnection(c.Request.Context(), "", string(platform))

	result, err := h.callbacks.HandleCallback(ctx, platform, params, appconn.RequestAuth{
		Bearer:    bearer,
		SessionID: session,
	})
	if err != nil {
		code, message := callbackFailure(err)
		logger.L(ctx).Warn("OAuth callback failed", zap.String("code", code), zap.Error(err))
		h.redirect(c, url.Values{
			"status":   {"error"},
			"platform": {string(platform)},
			"code":     {code},
			"message":  {message},
		})
		return
	}

	h.redirect(c, url.Values{
		"status":        {"success"},
		"platform":      {string(result.Platform)},
		"connection_id": {result.ConnectionID.String()},
		"display_name":  {result.DisplayName},
	})
}

// redirect sends the browser to the completion page with params merged into its query
func (h *OAuthHandler) redirect(c *gin.Context, params url.Values) {
	target, err := url.Parse(h.cfg.CompletionURL)
	if err != nil || h.cfg.CompletionURL == "" {
		h.logger.Error("Invalid completion URL", zap.String("url", h.cfg.CompletionURL), zap.Error(err))
		status := params.Get("status")
		if status == "success" {
			c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{
				"platform":      params.Get("platform"),
				"connection_id": params.Get("connection_id"),
				"display_name":  params.Get("display_name"),
			}))
			return
		}
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(params.Get("code"), params.Get("message"), middleware.GetRequestID(c)))
		return
	}

	q := target.Query()
	for k, v := range params {
		q[k] = v
	}
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}

func callbackFailure(err error) (code, message string) {
	var cerr *connection.Error
	if errors.As(err, &cerr) {
		return cerr.Kind.String(), cerr.Message
	}
	_, resp := dto.FromError(err, "")
	return resp.Error.Code, resp.Error.Message
}
