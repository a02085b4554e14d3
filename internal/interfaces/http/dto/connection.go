package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appconn "github.com/erp/connhub/internal/application/connection"
	"github.com/erp/connhub/internal/domain/connection"
)

// PlatformURI binds the :platform path segment
type PlatformURI struct {
	Platform string `uri:"platform" binding:"required,oneof=shopline nextengine"`
}

// ConnectionURI binds the :id path segment
type ConnectionURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ItemURI binds the :id and :item_id path segments
type ItemURI struct {
	ID     string `uri:"id" binding:"required,uuid"`
	ItemID string `uri:"item_id" binding:"required,uuid"`
}

// AuthorizeRequest starts an authorization
type AuthorizeRequest struct {
	// Handle is the storefront handle. Required by SHOPLINE.
	Handle string `json:"handle" binding:"omitempty,max=100"`
}

// AuthorizeResponse is the provider consent URL to send the user to
type AuthorizeResponse struct {
	Platform     string    `json:"platform"`
	AuthorizeURL string    `json:"authorize_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ItemStatusRequest enables or disables a connection item
type ItemStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active disabled"`
}

// RefreshQuery optionally names the platform the caller expects the connection to belong to
type RefreshQuery struct {
	Platform string `form:"platform" binding:"omitempty,oneof=shopline nextengine"`
}

// OrdersSummaryQuery is the period of an orders summary, RFC 3339 timestamps
type OrdersSummaryQuery struct {
	From time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// WebhookVerifyRequest asks whether a verified webhook event belongs to a connection
type WebhookVerifyRequest struct {
	Platform          string `json:"platform" binding:"required,oneof=shopline nextengine"`
	ConnectionID      string `json:"connection_id" binding:"required,uuid"`
	AccountExternalID string `json:"account_external_id" binding:"required"`
}

// WebhookVerifyResponse confirms the owner of a webhook event
type WebhookVerifyResponse struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	UserID       string    `json:"user_id"`
}

// ItemResponse is one connection item
type ItemResponse struct {
	ID                 uuid.UUID         `json:"id"`
	ExternalResourceID string            `json:"external_resource_id"`
	DisplayName        string            `json:"display_name"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ConnectionResponse is one connection. Tokens are never exposed, only their expiry.
type ConnectionResponse struct {
	ID                uuid.UUID      `json:"id"`
	Platform          string         `json:"platform"`
	PlatformName      string         `json:"platform_name"`
	ExternalAccountID string         `json:"external_account_id"`
	DisplayName       string         `json:"display_name"`
	Status            string         `json:"status"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty"`
	RefreshExpiresAt  *time.Time     `json:"refresh_expires_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Items             []ItemResponse `json:"items"`
}

// RefreshResponse reports the renewed expiry of a connection
type RefreshResponse struct {
	ConnectionID     uuid.UUID  `json:"connection_id"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}

// OrdersSummaryResponse totals the orders of a period
type OrdersSummaryResponse struct {
	ConnectionID uuid.UUID       `json:"connection_id"`
	OrderCount   int             `json:"order_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency,omitempty"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
}

// NewItemResponse converts a connection item
func NewItemResponse(item connection.ConnectionItem) ItemResponse {
	return ItemResponse{
		ID:                 item.ID,
		ExternalResourceID: item.ExternalResourceID,
		DisplayName:        item.DisplayName,
		Status:             string(item.Status),
		Metadata:           item.Metadata,
		UpdatedAt:          item.UpdatedAt,
	}
}

// NewConnectionResponse converts a connection and its items
func NewConnectionResponse(cw appconn.ConnectionWithItems) ConnectionResponse {
	conn := cw.Connection
	items := make([]ItemResponse, 0, len(cw.Items))
	for _, item := range cw.Items {
		items = append(items, NewItemResponse(item))
	}
	return ConnectionResponse{
		ID:                conn.ID,
		Platform:          conn.Platform.String(),
		PlatformName:      conn.Platform.DisplayName(),
		ExternalAccountID: conn.ExternalAccountID,
		DisplayName:       conn.DisplayName,
		Status:            string(conn.Status),
		ExpiresAt:         timePtr(conn.AuthPayload.ExpiresAt),
		RefreshExpiresAt:  timePtr(conn.AuthPayload.RefreshExpiresAt),
		CreatedAt:         conn.CreatedAt,
		UpdatedAt:         conn.UpdatedAt,
		Items:             items,
	}
}

// NewRefreshResponse converts a refreshed token payload, dropping the tokens
func NewRefreshResponse(connectionID uuid.UUID, tp *connection.TokenPayload) RefreshResponse {
	return RefreshResponse{
		ConnectionID:     connectionID,
		ExpiresAt:        timePtr(tp.ExpiresAt),
		RefreshExpiresAt: timePtr(tp.RefreshExpiresAt),
	}
}

// NewOrdersSummaryResponse converts an order summary
func NewOrdersSummaryResponse(connectionID uuid.UUID, s *connection.OrderSummary) OrdersSummaryResponse {
	return OrdersSummaryResponse{
		ConnectionID: connectionID,
		OrderCount:   s.OrderCount,
		TotalAmount:  s.TotalAmount,
		Currency:     s.Currency,
		From:         s.From,
		To:           s.To,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
