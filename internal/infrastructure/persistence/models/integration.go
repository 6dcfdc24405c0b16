package models

import (
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChannelConnectionModel is the persistence model for integration.ChannelConnection
type ChannelConnectionModel struct {
	SupplierAggregateModel
	ChannelType         integration.ChannelType      `gorm:"type:varchar(50);not null"`
	SealedCredentials   []byte                       `gorm:"not null"`
	Status              integration.ConnectionStatus `gorm:"type:varchar(20);not null;index"`
	AutoPublish         bool                         `gorm:"not null;default:false"`
	LastOrderSync       *time.Time
	LastInventorySync   *time.Time
	LastDriftCheck      *time.Time
	LastHealthCheck     *time.Time
	LastErrorMessage    string     `gorm:"type:text"`
	ConsecutiveFailures int        `gorm:"not null;default:0"`
	UnlinkedAt          *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (ChannelConnectionModel) TableName() string {
	return "channel_connections"
}

// ToDomain converts the model to a domain ChannelConnection
func (m *ChannelConnectionModel) ToDomain() *integration.ChannelConnection {
	return &integration.ChannelConnection{
		SupplierAggregateRoot: m.ToSupplierAggregateRoot(),
		ChannelType:           m.ChannelType,
		SealedCredentials:     m.SealedCredentials,
		Status:                m.Status,
		AutoPublish:           m.AutoPublish,
		LastOrderSync:         m.LastOrderSync,
		LastInventorySync:     m.LastInventorySync,
		LastDriftCheck:        m.LastDriftCheck,
		LastHealthCheck:       m.LastHealthCheck,
		LastErrorMessage:      m.LastErrorMessage,
		ConsecutiveFailures:   m.ConsecutiveFailures,
		UnlinkedAt:            m.UnlinkedAt,
	}
}

// FromDomain populates the model from a domain ChannelConnection
func (m *ChannelConnectionModel) FromDomain(c *integration.ChannelConnection) {
	m.FromDomainSupplierAggregateRoot(c.SupplierAggregateRoot)
	m.ChannelType = c.ChannelType
	m.SealedCredentials = c.SealedCredentials
	m.Status = c.Status
	m.AutoPublish = c.AutoPublish
	m.LastOrderSync = c.LastOrderSync
	m.LastInventorySync = c.LastInventorySync
	m.LastDriftCheck = c.LastDriftCheck
	m.LastHealthCheck = c.LastHealthCheck
	m.LastErrorMessage = c.LastErrorMessage
	m.ConsecutiveFailures = c.ConsecutiveFailures
	m.UnlinkedAt = c.UnlinkedAt
}

// ChannelConnectionModelFromDomain creates a model from a domain ChannelConnection
func ChannelConnectionModelFromDomain(c *integration.ChannelConnection) *ChannelConnectionModel {
	m := &ChannelConnectionModel{}
	m.FromDomain(c)
	return m
}

// SyncStateColumns are the columns a reconciliation pass may write on a connection
func (m *ChannelConnectionModel) SyncStateColumns() map[string]interface{} {
	return map[string]interface{}{
		"status":               m.Status,
		"last_order_sync":      m.LastOrderSync,
		"last_inventory_sync":  m.LastInventorySync,
		"last_drift_check":     m.LastDriftCheck,
		"last_health_check":    m.LastHealthCheck,
		"last_error_message":   m.LastErrorMessage,
		"consecutive_failures": m.ConsecutiveFailures,
		"updated_at":           m.UpdatedAt,
	}
}

// ProductChannelMappingModel is the persistence model for integration.ProductChannelMapping
type ProductChannelMappingModel struct {
	ID                  uuid.UUID             `gorm:"type:uuid;primary_key"`
	SupplierID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	LocalProductID      uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_mappings_product_connection,priority:1"`
	ChannelConnectionID uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_mappings_product_connection,priority:2"`
	RemoteListingID     *string               `gorm:"type:varchar(200)"`
	LastSyncedPrice     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	LastSyncedQuantity  int                   `gorm:"not null;default:0"`
	SyncState           integration.SyncState `gorm:"type:varchar(20);not null;index"`
	ConsecutiveFailures int                   `gorm:"not null;default:0"`
	LastAttemptAt       *time.Time
	NextAttemptAt       *time.Time
	LastError           string    `gorm:"type:text"`
	Deactivated         bool      `gorm:"not null;default:false"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductChannelMappingModel) TableName() string {
	return "product_channel_mappings"
}

// ToDomain converts the model to a domain mapping
func (m *ProductChannelMappingModel) ToDomain() *integration.ProductChannelMapping {
	return &integration.ProductChannelMapping{
		ID:                  m.ID,
		SupplierID:          m.SupplierID,
		LocalProductID:      m.LocalProductID,
		ChannelConnectionID: m.ChannelConnectionID,
		RemoteListingID:     m.RemoteListingID,
		LastSyncedPrice:     m.LastSyncedPrice,
		LastSyncedQuantity:  m.LastSyncedQuantity,
		SyncState:           m.SyncState,
		ConsecutiveFailures: m.ConsecutiveFailures,
		LastAttemptAt:       m.LastAttemptAt,
		NextAttemptAt:       m.NextAttemptAt,
		LastError:           m.LastError,
		Deactivated:         m.Deactivated,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// ProductChannelMappingModelFromDomain creates a model from a domain mapping
func ProductChannelMappingModelFromDomain(pm *integration.ProductChannelMapping) *ProductChannelMappingModel {
	return &ProductChannelMappingModel{
		ID:                  pm.ID,
		SupplierID:          pm.SupplierID,
		LocalProductID:      pm.LocalProductID,
		ChannelConnectionID: pm.ChannelConnectionID,
		RemoteListingID:     pm.RemoteListingID,
		LastSyncedPrice:     pm.LastSyncedPrice,
		LastSyncedQuantity:  pm.LastSyncedQuantity,
		SyncState:           pm.SyncState,
		ConsecutiveFailures: pm.ConsecutiveFailures,
		LastAttemptAt:       pm.LastAttemptAt,
		NextAttemptAt:       pm.NextAttemptAt,
		LastError:           pm.LastError,
		Deactivated:         pm.Deactivated,
		CreatedAt:           pm.CreatedAt,
		UpdatedAt:           pm.UpdatedAt,
	}
}

// SyncAttemptModel is one append-only row of the sync audit log
type SyncAttemptModel struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primary_key"`
	ConnectionID uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_attempts_connection,priority:1"`
	MappingID    *uuid.UUID                `gorm:"type:uuid;index"`
	Direction    integration.SyncDirection `gorm:"type:varchar(20);not null"`
	Outcome      integration.SyncOutcome   `gorm:"type:varchar(10);not null"`
	ErrorDetail  string                    `gorm:"type:text"`
	AttemptedAt  time.Time                 `gorm:"not null;index:idx_sync_attempts_connection,priority:2"`
}

// TableName returns the table name for GORM
func (SyncAttemptModel) TableName() string {
	return "sync_attempts"
}

// ToDomain converts the model to a domain SyncAttempt
func (m *SyncAttemptModel) ToDomain() integration.SyncAttempt {
	return integration.SyncAttempt{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		MappingID:    m.MappingID,
		Direction:    m.Direction,
		Outcome:      m.Outcome,
		ErrorDetail:  m.ErrorDetail,
		AttemptedAt:  m.AttemptedAt,
	}
}

// SyncAttemptModelFromDomain creates a model from a domain SyncAttempt
func SyncAttemptModelFromDomain(a *integration.SyncAttempt) *SyncAttemptModel {
	return &SyncAttemptModel{
		ID:           a.ID,
		ConnectionID: a.ConnectionID,
		MappingID:    a.MappingID,
		Direction:    a.Direction,
		Outcome:      a.Outcome,
		ErrorDetail:  a.ErrorDetail,
		AttemptedAt:  a.AttemptedAt,
	}
}

// RemoteOrderModel is the persistence model for integration.RemoteOrder
type RemoteOrderModel struct {
	ID              uuid.UUID                    `gorm:"type:uuid;primary_key"`
	SupplierID      uuid.UUID                    `gorm:"type:uuid;not null;index"`
	ConnectionID    uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex:idx_remote_orders_connection_order,priority:1"`
	RemoteOrderID   string                       `gorm:"type:varchar(200);not null;uniqueIndex:idx_remote_orders_connection_order,priority:2"`
	RemoteListingID string                       `gorm:"type:varchar(200);not null"`
	Quantity        int                          `gorm:"not null"`
	UnitPrice       decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	OrderedAt       time.Time                    `gorm:"not null"`
	State           integration.RemoteOrderState `gorm:"type:varchar(20);not null;index"`
	LocalProductID  *uuid.UUID                   `gorm:"type:uuid"`
	MappingID       *uuid.UUID                   `gorm:"type:uuid"`
	ErrorMessage    string                       `gorm:"type:text"`
	Shortfall       int                          `gorm:"not null;default:0"`
	PulledAt        time.Time                    `gorm:"not null"`
	AppliedAt       *time.Time
}

// TableName returns the table name for GORM
func (RemoteOrderModel) TableName() string {
	return "remote_orders"
}

// ToDomain converts the model to a domain RemoteOrder
func (m *RemoteOrderModel) ToDomain() *integration.RemoteOrder {
	return &integration.RemoteOrder{
		ID:              m.ID,
		SupplierID:      m.SupplierID,
		ConnectionID:    m.ConnectionID,
		RemoteOrderID:   m.RemoteOrderID,
		RemoteListingID: m.RemoteListingID,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		OrderedAt:       m.OrderedAt,
		State:           m.State,
		LocalProductID:  m.LocalProductID,
		MappingID:       m.MappingID,
		ErrorMessage:    m.ErrorMessage,
		Shortfall:       m.Shortfall,
		PulledAt:        m.PulledAt,
		AppliedAt:       m.AppliedAt,
	}
}

// RemoteOrderModelFromDomain creates a model from a domain RemoteOrder
func RemoteOrderModelFromDomain(o *integration.RemoteOrder) *RemoteOrderModel {
	return &RemoteOrderModel{
		ID:              o.ID,
		SupplierID:      o.SupplierID,
		ConnectionID:    o.ConnectionID,
		RemoteOrderID:   o.RemoteOrderID,
		RemoteListingID: o.RemoteListingID,
		Quantity:        o.Quantity,
		UnitPrice:       o.UnitPrice,
		OrderedAt:       o.OrderedAt,
		State:           o.State,
		LocalProductID:  o.LocalProductID,
		MappingID:       o.MappingID,
		ErrorMessage:    o.ErrorMessage,
		Shortfall:       o.Shortfall,
		PulledAt:        o.PulledAt,
		AppliedAt:       o.AppliedAt,
	}
}

// All returns every model, in dependency order, for AutoMigrate in tests
func All() []interface{} {
	return []interface{}{
		&SupplierModel{},
		&ProductRecordModel{},
		&ProductTransitionModel{},
		&AutomationRecordModel{},
		&ChannelConnectionModel{},
		&ProductChannelMappingModel{},
		&SyncAttemptModel{},
		&RemoteOrderModel{},
	}
}
