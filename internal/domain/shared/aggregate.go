package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch bumps UpdatedAt.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// BaseAggregateRoot adds an optimistic-lock version and the events raised
// since the aggregate was loaded. Version starts at 1 and every state change
// increments it once.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns the events raised since the last ClearDomainEvents
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// SupplierAggregateRoot scopes an aggregate to the supplier (seller) that owns it.
type SupplierAggregateRoot struct {
	BaseAggregateRoot
	SupplierID uuid.UUID
}

// NewSupplierAggregateRoot stamps a fresh ID and timestamps at version 1
func NewSupplierAggregateRoot(supplierID uuid.UUID) SupplierAggregateRoot {
	now := time.Now()
	return SupplierAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{
			BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			Version:    1,
		},
		SupplierID: supplierID,
	}
}

// OwnedBy reports whether supplierID owns the aggregate
func (a *SupplierAggregateRoot) OwnedBy(supplierID uuid.UUID) bool {
	return a.SupplierID == supplierID
}
