package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/interfaces/http/dto"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
)

// WebhookVerifier checks that a webhook event belongs to the stored connection
type WebhookVerifier interface {
	VerifyWebhookAccount(
		ctx context.Context,
		platform connection.PlatformCode,
		connectionID uuid.UUID,
		accountExternalID string,
	) (*connection.Connection, error)
}

// WebhookHandler exposes the webhook ownership check to internal receivers
type WebhookHandler struct {
	BaseHandler
	verifier WebhookVerifier
}

// NewWebhookHandler creates a WebhookHandler
func NewWebhookHandler(verifier WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{verifier: verifier}
}

// Verify godoc
// @ID           verifyWebhookAccount
// @Summary      Verify a webhook's account
// @Description  Confirms that an event's platform and account match the stored connection
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        request body dto.WebhookVerifyRequest true "Event identity"
// @Success      200 {object} dto.Response{data=dto.WebhookVerifyResponse}
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /webhooks/verify [post]
func (h *WebhookHandler) Verify(c *gin.Context) {
	var req dto.WebhookVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindingError(c, err)
		return
	}

	conn, err := h.verifier.VerifyWebhookAccount(c.Request.Context(),
		connection.PlatformCode(req.Platform), mustUUID(req.ConnectionID), req.AccountExternalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.WebhookVerifyResponse{ConnectionID: conn.ID, UserID: conn.UserID})
}
