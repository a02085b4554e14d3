package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/connhub/internal/domain/connection"
)

func TestGormConnectionItemRepository_CreateIfAbsent(t *testing.T) {
	db := setupConnectionTestDB(t)
	connRepo := NewGormConnectionRepository(db)
	repo := NewGormConnectionItemRepository(db)
	ctx := context.Background()

	conn := newTestConnection(t, "user-1", "company-1", "access")
	require.NoError(t, connRepo.Upsert(ctx, conn))

	shop := connection.ProviderShop{
		ExternalResourceID: "shop-1",
		DisplayName:        "Main Shop",
		Metadata:           map[string]string{"mall_id": "7"},
	}

	inserted, err := repo.CreateIfAbsent(ctx, connection.NewConnectionItem(conn, shop))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.CreateIfAbsent(ctx, connection.NewConnectionItem(conn, shop))
	require.NoError(t, err)
	assert.False(t, inserted, "second insert of the same resource must be skipped")

	items, err := repo.FindByConnection(ctx, conn.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Main Shop", items[0].DisplayName)
	assert.Equal(t, "7", items[0].Metadata["mall_id"])
	assert.Equal(t, connection.PlatformNextEngine, items[0].Platform)

	// the same resource id under another connection is a distinct item
	other := newTestConnection(t, "user-2", "company-1", "access")
	require.NoError(t, connRepo.Upsert(ctx, other))
	inserted, err = repo.CreateIfAbsent(ctx, connection.NewConnectionItem(other, shop))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestGormConnectionItemRepository_UpdateStatus(t *testing.T) {
	db := setupConnectionTestDB(t)
	connRepo := NewGormConnectionRepository(db)
	repo := NewGormConnectionItemRepository(db)
	ctx := context.Background()

	conn := newTestConnection(t, "user-1", "company-1", "access")
	require.NoError(t, connRepo.Upsert(ctx, conn))
	item := connection.NewConnectionItem(conn, connection.ProviderShop{ExternalResourceID: "shop-1"})
	_, err := repo.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      uuid.UUID
		status  connection.Status
		wantErr error
	}{
		{"disable", item.ID, connection.StatusDisabled, nil},
		{"enable", item.ID, connection.StatusActive, nil},
		{"unknown item", uuid.New(), connection.StatusDisabled, connection.ErrItemNotFound},
		{"invalid status", item.ID, connection.Status("paused"), connection.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.UpdateStatus(ctx, tt.id, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			found, err := repo.FindByID(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.status, found.Status)
		})
	}
}

func TestGormAuditLogRepository_CreateAndFindBetween(t *testing.T) {
	db := setupConnectionTestDB(t)
	repo := NewGormAuditLogRepository(db)
	ctx := context.Background()

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	connID := uuid.New()

	inside := connection.NewSuccessAudit("user-1", connection.OpConnectionCreate).
		WithConnection(connID).
		WithMeta("platform", "shopline")
	inside.CreatedAt = day.Add(3 * time.Hour)

	failed := connection.NewErrorAudit("user-1", connection.OpConnectionRefresh,
		connection.NewPlatformError(connection.KindTokenExpired, "002002", "expired", ""))
	failed.CreatedAt = day.Add(20 * time.Hour)

	nextDay := connection.NewSuccessAudit("user-2", connection.OpItemDisable)
	nextDay.CreatedAt = day.Add(25 * time.Hour)

	for _, e := range []*connection.AuditEntry{inside, failed, nextDay} {
		require.NoError(t, repo.Create(ctx, e))
	}

	entries, err := repo.FindBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, connection.OpConnectionCreate, entries[0].Operation)
	require.NotNil(t, entries[0].ConnectionID)
	assert.Equal(t, connID, *entries[0].ConnectionID)
	assert.Equal(t, "shopline", entries[0].Metadata["platform"])

	assert.Equal(t, connection.AuditError, entries[1].Result)
	assert.Equal(t, "TOKEN_EXPIRED", entries[1].ErrorCode)
	assert.Equal(t, "002002", entries[1].Metadata["provider_code"])
}
