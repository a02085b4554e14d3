package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectionRepository persists Connections
type ConnectionRepository interface {
	// FindByID returns ErrConnectionNotFound when no row exists
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)

	// FindByTriple returns ErrConnectionNotFound when no row exists
	FindByTriple(ctx context.Context, userID string, platform PlatformCode, externalAccountID string) (*Connection, error)

	// FindByUser lists a user's connections ordered by creation time
	FindByUser(ctx context.Context, userID string) ([]Connection, error)

	// FindExpiring lists active connections whose access token expires before the given time
	FindExpiring(ctx context.Context, before time.Time, limit int) ([]Connection, error)

	// Upsert inserts or updates the row matching the connection's unique triple in one
	// statement and reloads conn with the stored ID and timestamps.
	Upsert(ctx context.Context, conn *Connection) error
}

// ConnectionItemRepository persists ConnectionItems
type ConnectionItemRepository interface {
	// FindByID returns ErrItemNotFound when no row exists
	FindByID(ctx context.Context, id uuid.UUID) (*ConnectionItem, error)

	// FindByConnection lists the items of one connection
	FindByConnection(ctx context.Context, connectionID uuid.UUID) ([]ConnectionItem, error)

	// CreateIfAbsent inserts the item unless one with the same external resource ID already
	// exists under the connection. It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, item *ConnectionItem) (bool, error)

	// UpdateStatus changes the status of one item
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// AuditLogRepository appends audit entries
type AuditLogRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error

	// FindBetween lists entries created in [from, to) ordered by creation time
	FindBetween(ctx context.Context, from, to time.Time) ([]AuditEntry, error)
}

// CorrelationStore is a short-lived key/value store used to recover the user who started
// an OAuth attempt. Recall is single use: a hit deletes the entry atomically.
type CorrelationStore interface {
	Remember(ctx context.Context, key, userID string, ttl time.Duration) error

	// Recall returns the stored user and deletes the entry. found is false on a miss or expiry.
	Recall(ctx context.Context, key string) (userID string, found bool, err error)

	Close() error
}
