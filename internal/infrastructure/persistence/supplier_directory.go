package persistence

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSupplierDirectory answers supplier eligibility from the suppliers table
type GormSupplierDirectory struct {
	db *gorm.DB
}

// NewGormSupplierDirectory creates a new GormSupplierDirectory
func NewGormSupplierDirectory(db *gorm.DB) *GormSupplierDirectory {
	return &GormSupplierDirectory{db: db}
}

var _ listing.SupplierDirectory = (*GormSupplierDirectory)(nil)

// IsActiveSupplier reports whether the supplier exists and is active
func (d *GormSupplierDirectory) IsActiveSupplier(ctx context.Context, supplierID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.SupplierModel{}).
		Where("id = ? AND status = ?", supplierID, models.SupplierStatusActive).
		Count(&count).Error
	return count > 0, err
}
