package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/persistence/models"
)

// GormAuditLogRepository appends audit entries. It exposes no update or delete.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Create appends one entry
func (r *GormAuditLogRepository) Create(ctx context.Context, entry *connection.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	model := models.AuditLogModelFromDomain(entry)
	model.CreatedAt = model.CreatedAt.UTC()
	return r.db.WithContext(ctx).Create(model).Error
}

// FindBetween lists entries created in [from, to) ordered by creation time
func (r *GormAuditLogRepository) FindBetween(ctx context.Context, from, to time.Time) ([]connection.AuditEntry, error) {
	var rows []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]connection.AuditEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ connection.AuditLogRepository = (*GormAuditLogRepository)(nil)
