package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

const testUserID = "user-42"

// newTestEngine returns an engine whose callers are authenticated as testUserID
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Next()
	})
	return r
}

type mockAuthorizer struct{ mock.Mock }

func (m *mockAuthorizer) BuildAuthorizeURL(ctx context.Context, in appconn.AuthorizeInput) (*appconn.AuthorizeResult, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*appconn.AuthorizeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCallbacks struct{ mock.Mock }

func (m *mockCallbacks) HandleCallback(
	ctx context.Context,
	platform connection.PlatformCode,
	params connection.CallbackParams,
	reqAuth appconn.RequestAuth,
) (*appconn.CallbackResult, error) {
	args := m.Called(ctx, platform, params, reqAuth)
	if r := args.Get(0); r != nil {
		return r.(*appconn.CallbackResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRefresher struct{ mock.Mock }

func (m *mockRefresher) Refresh(ctx context.Context, connectionID uuid.UUID, callerUserID string) (*connection.TokenPayload, error) {
	args := m.Called(ctx, connectionID, callerUserID)
	if r := args.Get(0); r != nil {
		return r.(*connection.TokenPayload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefresher) RefreshOn(
	ctx context.Context,
	platform connection.PlatformCode,
	connectionID uuid.UUID,
	callerUserID string,
) (*connection.TokenPayload, error) {
	args := m.Called(ctx, platform, connectionID, callerUserID)
	if r := args.Get(0); r != nil {
		return r.(*connection.TokenPayload), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockItems struct{ mock.Mock }

func (m *mockItems) ListConnections(ctx context.Context, userID string) ([]appconn.ConnectionWithItems, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]appconn.ConnectionWithItems), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockItems) SetItemStatus(
	ctx context.Context,
	callerUserID string,
	connectionID, itemID uuid.UUID,
	status connection.Status,
) (*connection.ConnectionItem, error) {
	args := m.Called(ctx, callerUserID, connectionID, itemID, status)
	if r := args.Get(0); r != nil {
		return r.(*connection.ConnectionItem), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) OrdersSummary(ctx context.Context, connectionID uuid.UUID, callerUserID string, from, to time.Time) (*connection.OrderSummary, error) {
	args := m.Called(ctx, connectionID, callerUserID, from, to)
	if r := args.Get(0); r != nil {
		return r.(*connection.OrderSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) VerifyWebhookAccount(
	ctx context.Context,
	platform connection.PlatformCode,
	connectionID uuid.UUID,
	accountExternalID string,
) (*connection.Connection, error) {
	args := m.Called(ctx, platform, connectionID, accountExternalID)
	if r := args.Get(0); r != nil {
		return r.(*connection.Connection), args.Error(1)
	}
	return nil, args.Error(1)
}
