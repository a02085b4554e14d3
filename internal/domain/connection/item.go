package connection

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// ConnectionItem is one provider-side sub-resource (a shop) under a Connection.
// ExternalResourceID is unique within the owning Connection.
type ConnectionItem struct {
	ID                 uuid.UUID
	ConnectionID       uuid.UUID
	Platform           PlatformCode
	ExternalResourceID string
	DisplayName        string
	Metadata           map[string]string
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewConnectionItem creates an active item for a provider shop
func NewConnectionItem(conn *Connection, shop ProviderShop) *ConnectionItem {
	now := time.Now()
	return &ConnectionItem{
		ID:                 uuid.New(),
		ConnectionID:       conn.ID,
		Platform:           conn.Platform,
		ExternalResourceID: shop.ExternalResourceID,
		DisplayName:        shop.DisplayName,
		Metadata:           maps.Clone(shop.Metadata),
		Status:             StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// SyncResult reports the outcome of a shop sync
type SyncResult struct {
	Added   int
	Skipped int
}
