package persistence

import (
	"context"
	"errors"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConnectionRepository implements integration.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

var _ integration.ConnectionRepository = (*GormConnectionRepository)(nil)

// FindByID finds a connection by ID, unlinked or not
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ChannelConnection, error) {
	var model models.ChannelConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySupplier lists a supplier's linked connections, oldest first
func (r *GormConnectionRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]integration.ChannelConnection, error) {
	return r.find(r.db.WithContext(ctx).Where("supplier_id = ? AND unlinked_at IS NULL", supplierID))
}

// FindLinked lists every linked connection
func (r *GormConnectionRepository) FindLinked(ctx context.Context) ([]integration.ChannelConnection, error) {
	return r.find(r.db.WithContext(ctx).Where("unlinked_at IS NULL"))
}

func (r *GormConnectionRepository) find(query *gorm.DB) ([]integration.ChannelConnection, error) {
	var rows []models.ChannelConnectionModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.ChannelConnection, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a new connection
func (r *GormConnectionRepository) Create(ctx context.Context, conn *integration.ChannelConnection) error {
	return r.db.WithContext(ctx).Create(models.ChannelConnectionModelFromDomain(conn)).Error
}

// Save writes every column of the connection
func (r *GormConnectionRepository) Save(ctx context.Context, conn *integration.ChannelConnection) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChannelConnectionModel{}).
		Where("id = ?", conn.ID).
		Select("*").
		Omit("id", "created_at", "supplier_id").
		Updates(models.ChannelConnectionModelFromDomain(conn))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrConnectionNotFound
	}
	return nil
}

// SaveSyncState writes health and watermark columns while the connection is linked.
// An unlinked connection is left unchanged and no error is returned.
func (r *GormConnectionRepository) SaveSyncState(ctx context.Context, conn *integration.ChannelConnection) error {
	model := models.ChannelConnectionModelFromDomain(conn)
	result := r.db.WithContext(ctx).
		Model(&models.ChannelConnectionModel{}).
		Where("id = ? AND unlinked_at IS NULL", conn.ID).
		Updates(model.SyncStateColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ChannelConnectionModel{}).Where("id = ?", conn.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return integration.ErrConnectionNotFound
	}
	return nil
}
