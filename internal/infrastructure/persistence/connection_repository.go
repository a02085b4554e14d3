package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/persistence/models"
)

// GormConnectionRepository implements ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// FindByID finds a connection by ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTriple finds the connection for one user, platform and external account
func (r *GormConnectionRepository) FindByTriple(ctx context.Context, userID string, platform connection.PlatformCode, externalAccountID string) (*connection.Connection, error) {
	var model models.ConnectionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND external_account_id = ?", userID, platform, externalAccountID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUser lists a user's connections ordered by creation time
func (r *GormConnectionRepository) FindByUser(ctx context.Context, userID string) ([]connection.Connection, error) {
	var rows []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return connectionsToDomain(rows), nil
}

// FindExpiring lists active connections whose access token expires before the given time,
// soonest first
func (r *GormConnectionRepository) FindExpiring(ctx context.Context, before time.Time, limit int) ([]connection.Connection, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND access_expires_at IS NOT NULL AND access_expires_at < ?", connection.StatusActive, before.UTC()).
		Order("access_expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.ConnectionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return connectionsToDomain(rows), nil
}

// Upsert inserts the connection or, when a row with the same triple exists, updates its
// display name, payload and status in the same statement. conn is reloaded afterwards so
// it carries the stored ID and creation time.
func (r *GormConnectionRepository) Upsert(ctx context.Context, conn *connection.Connection) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	model, err := models.ConnectionModelFromDomain(conn)
	if err != nil {
		return fmt.Errorf("failed to encode auth payload: %w", err)
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}, {Name: "external_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name",
				"auth_payload",
				"access_expires_at",
				"status",
				"updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	stored, err := r.FindByTriple(ctx, conn.UserID, conn.Platform, conn.ExternalAccountID)
	if err != nil {
		return fmt.Errorf("failed to reload connection after upsert: %w", err)
	}
	*conn = *stored
	return nil
}

func connectionsToDomain(rows []models.ConnectionModel) []connection.Connection {
	out := make([]connection.Connection, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormConnectionRepository implements ConnectionRepository
var _ connection.ConnectionRepository = (*GormConnectionRepository)(nil)
