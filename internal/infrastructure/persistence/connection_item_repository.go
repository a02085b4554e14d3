package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/persistence/models"
)

// GormConnectionItemRepository implements ConnectionItemRepository using GORM
type GormConnectionItemRepository struct {
	db *gorm.DB
}

// NewGormConnectionItemRepository creates a new GormConnectionItemRepository
func NewGormConnectionItemRepository(db *gorm.DB) *GormConnectionItemRepository {
	return &GormConnectionItemRepository{db: db}
}

// FindByID finds an item by ID
func (r *GormConnectionItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*connection.ConnectionItem, error) {
	var model models.ConnectionItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByConnection lists the items of one connection
func (r *GormConnectionItemRepository) FindByConnection(ctx context.Context, connectionID uuid.UUID) ([]connection.ConnectionItem, error) {
	var rows []models.ConnectionItemModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]connection.ConnectionItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// CreateIfAbsent inserts the item unless (connection_id, external_resource_id) already exists
func (r *GormConnectionItemRepository) CreateIfAbsent(ctx context.Context, item *connection.ConnectionItem) (bool, error) {
	model := models.ConnectionItemModelFromDomain(item)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "connection_id"}, {Name: "external_resource_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatus changes the status of one item
func (r *GormConnectionItemRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status connection.Status) error {
	if !status.IsValid() {
		return connection.ErrInvalidStatus
	}
	result := r.db.WithContext(ctx).
		Model(&models.ConnectionItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return connection.ErrItemNotFound
	}
	return nil
}

// Ensure GormConnectionItemRepository implements ConnectionItemRepository
var _ connection.ConnectionItemRepository = (*GormConnectionItemRepository)(nil)
