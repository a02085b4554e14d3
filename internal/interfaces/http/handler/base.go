// Package handler implements the HTTP endpoints of connhub.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/infrastructure/logger"
	"github.com/erp/connhub/internal/interfaces/http/dto"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeBadRequest, message, middleware.GetRequestID(c)))
}

// HandleError maps a service error to its status and error body.
// Server-side failures are logged with the request context.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status, resp := dto.FromError(err, middleware.GetRequestID(c))
	log := logger.L(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Error(err))
	} else {
		log.Debug("Request rejected", zap.Error(err))
	}
	c.JSON(status, resp)
}

// bindURI binds and validates path parameters, answering 400 on failure
func bindURI(c *gin.Context, obj any) bool {
	if err := c.ShouldBindUri(obj); err != nil {
		middleware.AbortWithBindingError(c, err)
		return false
	}
	return true
}

// mustUUID parses an ID already validated by the uuid binding tag
func mustUUID(raw string) uuid.UUID {
	id, _ := uuid.Parse(raw)
	return id
}
