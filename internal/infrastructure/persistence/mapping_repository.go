package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMappingRepository implements integration.MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

var _ integration.MappingRepository = (*GormMappingRepository)(nil)

// FindByID finds a mapping by ID
func (r *GormMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ProductChannelMapping, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByProductAndConnection finds the mapping of a product on a connection
func (r *GormMappingRepository) FindByProductAndConnection(ctx context.Context, productID, connectionID uuid.UUID) (*integration.ProductChannelMapping, error) {
	return r.first(r.db.WithContext(ctx).
		Where("local_product_id = ? AND channel_connection_id = ?", productID, connectionID))
}

// FindByRemoteListingID finds the mapping bound to a remote listing on a connection
func (r *GormMappingRepository) FindByRemoteListingID(ctx context.Context, connectionID uuid.UUID, remoteListingID string) (*integration.ProductChannelMapping, error) {
	return r.first(r.db.WithContext(ctx).
		Where("channel_connection_id = ? AND remote_listing_id = ?", connectionID, remoteListingID))
}

func (r *GormMappingRepository) first(query *gorm.DB) (*integration.ProductChannelMapping, error) {
	var model models.ProductChannelMappingModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPushable returns unsynced, drifted and errored mappings, oldest update first
func (r *GormMappingRepository) FindPushable(ctx context.Context, connectionID uuid.UUID) ([]integration.ProductChannelMapping, error) {
	states := []integration.SyncState{
		integration.SyncStateUnsynced,
		integration.SyncStateDrifted,
		integration.SyncStateError,
	}
	return r.find(r.db.WithContext(ctx).
		Where("channel_connection_id = ? AND sync_state IN ?", connectionID, states).
		Order("updated_at ASC").
		Order("created_at ASC"))
}

// FindWithRemoteListing returns mappings of a connection that have a remote listing
func (r *GormMappingRepository) FindWithRemoteListing(ctx context.Context, connectionID uuid.UUID) ([]integration.ProductChannelMapping, error) {
	return r.find(r.db.WithContext(ctx).
		Where("channel_connection_id = ? AND remote_listing_id IS NOT NULL AND remote_listing_id <> ''", connectionID).
		Order("created_at ASC"))
}

// List returns mappings matching the filter, oldest first
func (r *GormMappingRepository) List(ctx context.Context, filter integration.MappingFilter) ([]integration.ProductChannelMapping, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductChannelMappingModel{})
	if filter.ConnectionID != nil {
		query = query.Where("channel_connection_id = ?", *filter.ConnectionID)
	}
	if filter.ProductID != nil {
		query = query.Where("local_product_id = ?", *filter.ProductID)
	}
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if len(filter.States) > 0 {
		query = query.Where("sync_state IN ?", filter.States)
	}
	return r.find(query.Order("created_at ASC"))
}

func (r *GormMappingRepository) find(query *gorm.DB) ([]integration.ProductChannelMapping, error) {
	var rows []models.ProductChannelMappingModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.ProductChannelMapping, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a mapping
func (r *GormMappingRepository) Create(ctx context.Context, mapping *integration.ProductChannelMapping) error {
	err := r.db.WithContext(ctx).Create(models.ProductChannelMappingModelFromDomain(mapping)).Error
	if isDuplicateKey(err) {
		return integration.ErrMappingExists
	}
	return err
}

// Save writes every mutable column of the mapping.
// ErrRemoteListingAssigned is returned when another mapping on the connection
// already holds the remote listing ID.
func (r *GormMappingRepository) Save(ctx context.Context, mapping *integration.ProductChannelMapping) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductChannelMappingModel{}).
		Where("id = ?", mapping.ID).
		Select("*").
		Omit("id", "created_at", "supplier_id", "local_product_id", "channel_connection_id").
		Updates(models.ProductChannelMappingModelFromDomain(mapping))
	if isDuplicateKey(result.Error) {
		return integration.ErrRemoteListingAssigned
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// MarkUnsyncedByProduct moves in_sync mappings of a product back to unsynced.
// Drifted mappings keep their forced push.
func (r *GormMappingRepository) MarkUnsyncedByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductChannelMappingModel{}).
		Where("local_product_id = ? AND sync_state = ?", productID, integration.SyncStateInSync).
		Updates(map[string]interface{}{
			"sync_state": integration.SyncStateUnsynced,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
