package persistence

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// latestBatchSize bounds the IN list of a LatestByMappings query
const latestBatchSize = 200

// GormSyncAttemptRepository implements integration.SyncAttemptRepository using GORM.
// Rows are only ever inserted.
type GormSyncAttemptRepository struct {
	db *gorm.DB
}

// NewGormSyncAttemptRepository creates a new GormSyncAttemptRepository
func NewGormSyncAttemptRepository(db *gorm.DB) *GormSyncAttemptRepository {
	return &GormSyncAttemptRepository{db: db}
}

var _ integration.SyncAttemptRepository = (*GormSyncAttemptRepository)(nil)

// Append inserts an attempt
func (r *GormSyncAttemptRepository) Append(ctx context.Context, attempt *integration.SyncAttempt) error {
	return r.db.WithContext(ctx).Create(models.SyncAttemptModelFromDomain(attempt)).Error
}

// LatestByMappings returns the newest attempt of each mapping that has one
func (r *GormSyncAttemptRepository) LatestByMappings(ctx context.Context, mappingIDs []uuid.UUID) (map[uuid.UUID]integration.SyncAttempt, error) {
	out := make(map[uuid.UUID]integration.SyncAttempt, len(mappingIDs))
	for start := 0; start < len(mappingIDs); start += latestBatchSize {
		end := start + latestBatchSize
		if end > len(mappingIDs) {
			end = len(mappingIDs)
		}
		var rows []models.SyncAttemptModel
		if err := r.db.WithContext(ctx).
			Where("mapping_id IN ?", mappingIDs[start:end]).
			Order("attempted_at DESC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			id := *rows[i].MappingID
			if _, seen := out[id]; !seen {
				out[id] = rows[i].ToDomain()
			}
		}
	}
	return out, nil
}

// ListByConnection returns the newest attempts of a connection
func (r *GormSyncAttemptRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]integration.SyncAttempt, error) {
	query := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("attempted_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.SyncAttemptModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.SyncAttempt, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
