package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/logger"
	"github.com/erp/connhub/internal/interfaces/http/dto"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
)

// ConnectionRefresher refreshes connection tokens on request
type ConnectionRefresher interface {
	Refresh(ctx context.Context, connectionID uuid.UUID, callerUserID string) (*connection.TokenPayload, error)
	RefreshOn(
		ctx context.Context,
		platform connection.PlatformCode,
		connectionID uuid.UUID,
		callerUserID string,
	) (*connection.TokenPayload, error)
}

// ItemManager lists connections and toggles their items
type ItemManager interface {
	ListConnections(ctx context.Context, userID string) ([]appconn.ConnectionWithItems, error)
	SetItemStatus(
		ctx context.Context,
		callerUserID string,
		connectionID, itemID uuid.UUID,
		status connection.Status,
	) (*connection.ConnectionItem, error)
}

// OrdersSummarizer totals provider orders for a connection
type OrdersSummarizer interface {
	OrdersSummary(ctx context.Context, connectionID uuid.UUID, callerUserID string, from, to time.Time) (*connection.OrderSummary, error)
}

// ConnectionHandler serves the caller's connections
type ConnectionHandler struct {
	BaseHandler
	refresher ConnectionRefresher
	items     ItemManager
	orders    OrdersSummarizer
}

// NewConnectionHandler creates a ConnectionHandler
func NewConnectionHandler(refresher ConnectionRefresher, items ItemManager, orders OrdersSummarizer) *ConnectionHandler {
	return &ConnectionHandler{
		refresher: refresher,
		items:     items,
		orders:    orders,
	}
}

// List godoc
// @ID           listConnections
// @Summary      List connections
// @Description  Lists the caller's connections and their items. Tokens are never returned.
// @Tags         connections
// @Produce      json
// @Success      200 {object} dto.Response{data=[]dto.ConnectionResponse}
// @Failure      401 {object} dto.Response
// @Security     BearerAuth
// @Router       /connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	list, err := h.items.ListConnections(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]dto.ConnectionResponse, 0, len(list))
	for _, cw := range list {
		resp = append(resp, dto.NewConnectionResponse(cw))
	}
	h.Success(c, resp)
}

// Refresh godoc
// @ID           refreshConnection
// @Summary      Refresh a connection's tokens
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        platform query string false "Expected platform" Enums(shopline, nextengine)
// @Success      200 {object} dto.Response{data=dto.RefreshResponse}
// @Failure      400 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Security     BearerAuth
// @Router       /connections/{id}/refresh [post]
func (h *ConnectionHandler) Refresh(c *gin.Context) {
	var uri dto.ConnectionURI
	if !bindURI(c, &uri) {
		return
	}
	var q dto.RefreshQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.AbortWithBindingError(c, err)
		return
	}
	id := mustUUID(uri.ID)
	ctx := logger.WithConnection(c.Request.Context(), uri.ID, q.Platform)

	var (
		tp  *connection.TokenPayload
		err error
	)
	if q.Platform == "" {
		tp, err = h.refresher.Refresh(ctx, id, middleware.GetUserID(c))
	} else {
		tp, err = h.refresher.RefreshOn(ctx, connection.PlatformCode(q.Platform), id, middleware.GetUserID(c))
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewRefreshResponse(id, tp))
}

// SetItemStatus godoc
// @ID           setConnectionItemStatus
// @Summary      Enable or disable a connection item
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        item_id path string true "Item ID" format(uuid)
// @Param        request body dto.ItemStatusRequest true "New status"
// @Success      200 {object} dto.Response{data=dto.ItemResponse}
// @Failure      400 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /connections/{id}/items/{item_id} [patch]
func (h *ConnectionHandler) SetItemStatus(c *gin.Context) {
	var uri dto.ItemURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.ItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBindingError(c, err)
		return
	}
	ctx := logger.WithConnection(c.Request.Context(), uri.ID, "")

	item, err := h.items.SetItemStatus(ctx, middleware.GetUserID(c),
		mustUUID(uri.ID), mustUUID(uri.ItemID), connection.Status(req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewItemResponse(*item))
}

// OrdersSummary godoc
// @ID           connectionOrdersSummary
// @Summary      Summarize orders
// @Description  Counts and totals the provider orders created in [from, to]
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        from query string true "Period start (RFC 3339)"
// @Param        to query string true "Period end (RFC 3339)"
// @Success      200 {object} dto.Response{data=dto.OrdersSummaryResponse}
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Security     BearerAuth
// @Router       /connections/{id}/orders/summary [get]
func (h *ConnectionHandler) OrdersSummary(c *gin.Context) {
	var uri dto.ConnectionURI
	if !bindURI(c, &uri) {
		return
	}
	var q dto.OrdersSummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.AbortWithBindingError(c, err)
		return
	}
	id := mustUUID(uri.ID)
	ctx := logger.WithConnection(c.Request.Context(), uri.ID, "")

	summary, err := h.orders.OrdersSummary(ctx, id, middleware.GetUserID(c), q.From, q.To)
	if errors.Is(err, appconn.ErrInvalidSummaryRange) {
		h.BadRequest(c, "from must precede to and the period may not exceed 92 days")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewOrdersSummaryResponse(id, summary))
}
