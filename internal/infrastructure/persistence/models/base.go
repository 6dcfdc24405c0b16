package models

import (
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel maps to the domain's BaseEntity
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// SupplierAggregateModel holds the columns of a supplier-scoped aggregate root.
// Version backs optimistic locking.
type SupplierAggregateModel struct {
	BaseModel
	Version    int       `gorm:"not null;default:1"`
	SupplierID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainSupplierAggregateRoot populates the model from a domain aggregate root
func (m *SupplierAggregateModel) FromDomainSupplierAggregateRoot(a shared.SupplierAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
	m.SupplierID = a.SupplierID
}

// ToSupplierAggregateRoot rebuilds the domain aggregate root. Pending events start empty.
func (m *SupplierAggregateModel) ToSupplierAggregateRoot() shared.SupplierAggregateRoot {
	return shared.SupplierAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		SupplierID: m.SupplierID,
	}
}
