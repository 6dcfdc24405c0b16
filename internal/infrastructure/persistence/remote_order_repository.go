package persistence

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRemoteOrderRepository implements integration.RemoteOrderRepository using GORM
type GormRemoteOrderRepository struct {
	db *gorm.DB
}

// NewGormRemoteOrderRepository creates a new GormRemoteOrderRepository
func NewGormRemoteOrderRepository(db *gorm.DB) *GormRemoteOrderRepository {
	return &GormRemoteOrderRepository{db: db}
}

var _ integration.RemoteOrderRepository = (*GormRemoteOrderRepository)(nil)

// CreateIfAbsent inserts the order unless (connection_id, remote_order_id) already exists
func (r *GormRemoteOrderRepository) CreateIfAbsent(ctx context.Context, order *integration.RemoteOrder) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "connection_id"}, {Name: "remote_order_id"}},
			DoNothing: true,
		}).
		Create(models.RemoteOrderModelFromDomain(order))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindResolved returns orders awaiting stock application, oldest first
func (r *GormRemoteOrderRepository) FindResolved(ctx context.Context, connectionID uuid.UUID) ([]integration.RemoteOrder, error) {
	return r.find(r.db.WithContext(ctx).
		Where("connection_id = ? AND state = ?", connectionID, integration.RemoteOrderResolved).
		Order("ordered_at ASC").
		Order("pulled_at ASC"))
}

// List returns a connection's orders, newest first, optionally filtered by state
func (r *GormRemoteOrderRepository) List(ctx context.Context, connectionID uuid.UUID, state *integration.RemoteOrderState, limit int) ([]integration.RemoteOrder, error) {
	query := r.db.WithContext(ctx).Where("connection_id = ?", connectionID)
	if state != nil {
		query = query.Where("state = ?", *state)
	}
	query = query.Order("ordered_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

func (r *GormRemoteOrderRepository) find(query *gorm.DB) ([]integration.RemoteOrder, error) {
	var rows []models.RemoteOrderModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.RemoteOrder, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save writes the resolution columns of an order
func (r *GormRemoteOrderRepository) Save(ctx context.Context, order *integration.RemoteOrder) error {
	result := r.db.WithContext(ctx).
		Model(&models.RemoteOrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"state":            order.State,
			"local_product_id": order.LocalProductID,
			"mapping_id":       order.MappingID,
			"error_message":    order.ErrorMessage,
			"shortfall":        order.Shortfall,
			"applied_at":       order.AppliedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
