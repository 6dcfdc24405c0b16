package listing

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRecordFilter narrows a product record listing
type ProductRecordFilter struct {
	shared.Filter
	SupplierID *uuid.UUID
	Status     *Status
	Category   string
}

// ProductRecordReader defines read operations for product records
type ProductRecordReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ProductRecord, error)
	// FindHolderOfSourceURL returns the newest record for (supplier, url) whose
	// status holds the URL, or ErrProductNotFound.
	FindHolderOfSourceURL(ctx context.Context, supplierID uuid.UUID, sourceURL string) (*ProductRecord, error)
	// FindCorpus returns the comparison set for a new candidate: the supplier's
	// non-rejected records in the same category, newest first, at most limit.
	FindCorpus(ctx context.Context, supplierID uuid.UUID, category string, limit int) ([]CorpusEntry, error)
	List(ctx context.Context, filter ProductRecordFilter) ([]ProductRecord, int64, error)
	ListTransitions(ctx context.Context, productID uuid.UUID) ([]TransitionRecord, error)
}

// ProductRecordWriter defines write operations for product records
type ProductRecordWriter interface {
	// Create inserts a new record together with its pending transitions
	Create(ctx context.Context, record *ProductRecord) error
	// Save updates an existing record with an optimistic version check and
	// appends its pending transitions. Returns ErrVersionConflict on a lost update.
	Save(ctx context.Context, record *ProductRecord) error
	// Delete permanently removes a record and its history
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRecordRepository combines reader and writer
type ProductRecordRepository interface {
	ProductRecordReader
	ProductRecordWriter
}

// AutomationRecordRepository stores automation outcomes
type AutomationRecordRepository interface {
	Save(ctx context.Context, record *AutomationRecord) error
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]AutomationRecord, error)
}

// SupplierDirectory answers whether a supplier may ingest listings.
// Supplier accounts are owned by an external subsystem.
type SupplierDirectory interface {
	IsActiveSupplier(ctx context.Context, supplierID uuid.UUID) (bool, error)
}
