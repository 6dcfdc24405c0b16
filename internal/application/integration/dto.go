package integration

import (
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConnectRequest is the input of ChannelRegistryService.Connect
type ConnectRequest struct {
	SupplierID  uuid.UUID
	ChannelType integration.ChannelType
	Credentials integration.Credentials
	AutoPublish bool
}

// ConnectionResponse is the API view of a connection. Credentials are never exposed.
type ConnectionResponse struct {
	ID                  uuid.UUID                    `json:"id"`
	SupplierID          uuid.UUID                    `json:"supplier_id"`
	ChannelType         integration.ChannelType      `json:"channel_type"`
	Status              integration.ConnectionStatus `json:"connection_status"`
	AutoPublish         bool                         `json:"auto_publish"`
	LastOrderSync       *time.Time                   `json:"last_order_sync,omitempty"`
	LastInventorySync   *time.Time                   `json:"last_inventory_sync,omitempty"`
	LastDriftCheck      *time.Time                   `json:"last_drift_check,omitempty"`
	LastHealthCheck     *time.Time                   `json:"last_health_check,omitempty"`
	LastErrorMessage    string                       `json:"last_error_message,omitempty"`
	ConsecutiveFailures int                          `json:"consecutive_failures"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

// OwnedBy reports whether the connection belongs to the supplier
func (r *ConnectionResponse) OwnedBy(supplierID uuid.UUID) bool {
	return r.SupplierID == supplierID
}

// ToConnectionResponse converts a connection to its response
func ToConnectionResponse(c *integration.ChannelConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:                  c.ID,
		SupplierID:          c.SupplierID,
		ChannelType:         c.ChannelType,
		Status:              c.Status,
		AutoPublish:         c.AutoPublish,
		LastOrderSync:       c.LastOrderSync,
		LastInventorySync:   c.LastInventorySync,
		LastDriftCheck:      c.LastDriftCheck,
		LastHealthCheck:     c.LastHealthCheck,
		LastErrorMessage:    c.LastErrorMessage,
		ConsecutiveFailures: c.ConsecutiveFailures,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// MappingResponse is the API view of a mapping
type MappingResponse struct {
	ID                  uuid.UUID             `json:"id"`
	LocalProductID      uuid.UUID             `json:"local_product_id"`
	ChannelConnectionID uuid.UUID             `json:"channel_connection_id"`
	RemoteListingID     *string               `json:"remote_listing_id,omitempty"`
	LastSyncedPrice     decimal.Decimal       `json:"last_synced_price"`
	LastSyncedQuantity  int                   `json:"last_synced_quantity"`
	SyncState           integration.SyncState `json:"sync_state"`
	Deactivated         bool                  `json:"deactivated"`
	CreatedAt           time.Time             `json:"created_at"`
}

// ToMappingResponse converts a mapping to its response
func ToMappingResponse(m *integration.ProductChannelMapping) MappingResponse {
	return MappingResponse{
		ID:                  m.ID,
		LocalProductID:      m.LocalProductID,
		ChannelConnectionID: m.ChannelConnectionID,
		RemoteListingID:     m.RemoteListingID,
		LastSyncedPrice:     m.LastSyncedPrice,
		LastSyncedQuantity:  m.LastSyncedQuantity,
		SyncState:           m.SyncState,
		Deactivated:         m.Deactivated,
		CreatedAt:           m.CreatedAt,
	}
}

// AttemptView summarizes one sync attempt
type AttemptView struct {
	Direction   integration.SyncDirection `json:"direction"`
	Outcome     integration.SyncOutcome   `json:"outcome"`
	ErrorDetail string                    `json:"error_detail,omitempty"`
	AttemptedAt time.Time                 `json:"attempted_at"`
}

// MappingStatus is one row of the synchronization status query
type MappingStatus struct {
	MappingID           uuid.UUID             `json:"mapping_id"`
	LocalProductID      uuid.UUID             `json:"local_product_id"`
	RemoteListingID     *string               `json:"remote_listing_id,omitempty"`
	SyncState           integration.SyncState `json:"sync_state"`
	LastError           string                `json:"last_error,omitempty"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	NextAttemptAt       *time.Time            `json:"next_attempt_at,omitempty"`
	LastAttempt         *AttemptView          `json:"last_attempt,omitempty"`
}

// ConnectionSyncStatus is the synchronization status of one connection
type ConnectionSyncStatus struct {
	Connection ConnectionResponse            `json:"connection"`
	Counts     map[integration.SyncState]int `json:"counts"`
	Mappings   []MappingStatus               `json:"mappings"`
}

// RemoteOrderResponse is the API view of a pulled order
type RemoteOrderResponse struct {
	ID              uuid.UUID                    `json:"id"`
	RemoteOrderID   string                       `json:"remote_order_id"`
	RemoteListingID string                       `json:"remote_listing_id"`
	Quantity        int                          `json:"quantity"`
	UnitPrice       decimal.Decimal              `json:"unit_price"`
	State           integration.RemoteOrderState `json:"state"`
	LocalProductID  *uuid.UUID                   `json:"local_product_id,omitempty"`
	ErrorMessage    string                       `json:"error_message,omitempty"`
	OrderedAt       time.Time                    `json:"ordered_at"`
	PulledAt        time.Time                    `json:"pulled_at"`
	AppliedAt       *time.Time                   `json:"applied_at,omitempty"`
}

// ToRemoteOrderResponse converts a remote order to its response
func ToRemoteOrderResponse(o *integration.RemoteOrder) RemoteOrderResponse {
	return RemoteOrderResponse{
		ID:              o.ID,
		RemoteOrderID:   o.RemoteOrderID,
		RemoteListingID: o.RemoteListingID,
		Quantity:        o.Quantity,
		UnitPrice:       o.UnitPrice,
		State:           o.State,
		LocalProductID:  o.LocalProductID,
		ErrorMessage:    o.ErrorMessage,
		OrderedAt:       o.OrderedAt,
		PulledAt:        o.PulledAt,
		AppliedAt:       o.AppliedAt,
	}
}
