package persistence

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAutomationRecordRepository implements listing.AutomationRecordRepository
type GormAutomationRecordRepository struct {
	db *gorm.DB
}

// NewGormAutomationRecordRepository creates a new GormAutomationRecordRepository
func NewGormAutomationRecordRepository(db *gorm.DB) *GormAutomationRecordRepository {
	return &GormAutomationRecordRepository{db: db}
}

var _ listing.AutomationRecordRepository = (*GormAutomationRecordRepository)(nil)

// Save inserts or updates an automation record
func (r *GormAutomationRecordRepository) Save(ctx context.Context, record *listing.AutomationRecord) error {
	return r.db.WithContext(ctx).Save(models.AutomationRecordModelFromDomain(record)).Error
}

// FindByProduct returns a product's automation records, newest first
func (r *GormAutomationRecordRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]listing.AutomationRecord, error) {
	var rows []models.AutomationRecordModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("attempted_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.AutomationRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
