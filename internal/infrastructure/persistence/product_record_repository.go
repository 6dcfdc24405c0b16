package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRecordRepository implements listing.ProductRecordRepository using GORM
type GormProductRecordRepository struct {
	db *gorm.DB
}

// NewGormProductRecordRepository creates a new GormProductRecordRepository
func NewGormProductRecordRepository(db *gorm.DB) *GormProductRecordRepository {
	return &GormProductRecordRepository{db: db}
}

var _ listing.ProductRecordRepository = (*GormProductRecordRepository)(nil)

// holdingStatuses are the statuses for which FindHolderOfSourceURL answers
func holdingStatuses() []listing.Status {
	var out []listing.Status
	for _, s := range listing.AllStatuses() {
		if s.HoldsSourceURL() {
			out = append(out, s)
		}
	}
	return out
}

// FindByID finds a record by its ID
func (r *GormProductRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.ProductRecord, error) {
	var model models.ProductRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindHolderOfSourceURL returns the newest record holding (supplier, url)
func (r *GormProductRecordRepository) FindHolderOfSourceURL(ctx context.Context, supplierID uuid.UUID, sourceURL string) (*listing.ProductRecord, error) {
	var model models.ProductRecordModel
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND source_url = ? AND status IN ?", supplierID, sourceURL, holdingStatuses()).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCorpus returns the supplier's non-rejected records in the category, newest first
func (r *GormProductRecordRepository) FindCorpus(ctx context.Context, supplierID uuid.UUID, category string, limit int) ([]listing.CorpusEntry, error) {
	var rows []models.ProductRecordModel
	query := r.db.WithContext(ctx).
		Select("id", "fields").
		Where("supplier_id = ? AND status <> ?", supplierID, listing.StatusRejected).
		Where("LOWER(category) = ?", strings.ToLower(strings.TrimSpace(category))).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	corpus := make([]listing.CorpusEntry, len(rows))
	for i, row := range rows {
		corpus[i] = listing.CorpusEntry{ID: row.ID, Fields: row.Fields}
	}
	return corpus, nil
}

// List returns a page of records and the total matching the filter
func (r *GormProductRecordRepository) List(ctx context.Context, filter listing.ProductRecordFilter) ([]listing.ProductRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductRecordModel{})
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(strings.TrimSpace(filter.Category)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(source_url) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ProductRecordSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var rows []models.ProductRecordModel
	if err := query.
		Order(orderBy + " " + orderDir).
		Order("id ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]listing.ProductRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, total, nil
}

// ListTransitions returns a record's lifecycle history, oldest first
func (r *GormProductRecordRepository) ListTransitions(ctx context.Context, productID uuid.UUID) ([]listing.TransitionRecord, error) {
	var rows []models.ProductTransitionModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.TransitionRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a new record together with its pending transitions
func (r *GormProductRecordRepository) Create(ctx context.Context, record *listing.ProductRecord) error {
	model := models.ProductRecordModelFromDomain(record)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return insertTransitions(tx, record.PendingTransitions())
	})
	if err != nil {
		// another live record holds the source URL
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	record.ClearPendingTransitions()
	return nil
}

// Save writes the record if the stored version is the one it was loaded at
func (r *GormProductRecordRepository) Save(ctx context.Context, record *listing.ProductRecord) error {
	model := models.ProductRecordModelFromDomain(record)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ProductRecordModel{}).
			Where("id = ? AND version = ?", record.ID, record.Version-1).
			Select("*").
			Omit("id", "created_at", "supplier_id").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ProductRecordModel{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return listing.ErrProductNotFound
			}
			return listing.ErrVersionConflict
		}
		return insertTransitions(tx, record.PendingTransitions())
	})
	if err != nil {
		return err
	}
	record.ClearPendingTransitions()
	return nil
}

// Delete removes a record together with its transitions and automation records
func (r *GormProductRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductTransitionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.AutomationRecordModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.ProductRecordModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return listing.ErrProductNotFound
		}
		return nil
	})
}

func insertTransitions(tx *gorm.DB, transitions []listing.TransitionRecord) error {
	if len(transitions) == 0 {
		return nil
	}
	rows := make([]models.ProductTransitionModel, len(transitions))
	for i, t := range transitions {
		rows[i] = models.ProductTransitionModelFromDomain(t)
	}
	return tx.Create(&rows).Error
}
