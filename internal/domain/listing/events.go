package listing

import (
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeProductRecord = "ProductRecord"

// Event type constants
const (
	EventTypeProductActivated = "ProductActivated"
	EventTypeProductArchived  = "ProductArchived"
	EventTypeProductRejected  = "ProductRejected"
)

// ProductActivatedEvent is published when a record reaches active, by auto-approval or review
type ProductActivatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	SourceURL string    `json:"source_url"`
	Category  string    `json:"category"`
}

// NewProductActivatedEvent creates a new ProductActivatedEvent
func NewProductActivatedEvent(p *ProductRecord) *ProductActivatedEvent {
	return &ProductActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductActivated, AggregateTypeProductRecord, p.ID, p.SupplierID),
		ProductID:       p.ID,
		SourceURL:       p.SourceURL,
		Category:        p.Fields.Category,
	}
}

// ProductArchivedEvent is published when an active record is taken off sale
type ProductArchivedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason,omitempty"`
}

// NewProductArchivedEvent creates a new ProductArchivedEvent
func NewProductArchivedEvent(p *ProductRecord, reason string) *ProductArchivedEvent {
	return &ProductArchivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductArchived, AggregateTypeProductRecord, p.ID, p.SupplierID),
		ProductID:       p.ID,
		Reason:          reason,
	}
}

// ProductRejectedEvent is published when a reviewer rejects a record
type ProductRejectedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Notes     string    `json:"notes"`
}

// NewProductRejectedEvent creates a new ProductRejectedEvent
func NewProductRejectedEvent(p *ProductRecord, notes string) *ProductRejectedEvent {
	return &ProductRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductRejected, AggregateTypeProductRecord, p.ID, p.SupplierID),
		ProductID:       p.ID,
		Notes:           notes,
	}
}
