package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemoteOrderState tracks an inbound order through resolution and stock application
type RemoteOrderState string

const (
	// RemoteOrderResolved: the listing maps to a local product; stock not yet decremented
	RemoteOrderResolved RemoteOrderState = "resolved"
	// RemoteOrderApplied: stock was decremented on a later pass
	RemoteOrderApplied RemoteOrderState = "applied"
	// RemoteOrderError: no mapping found; kept for manual reconciliation
	RemoteOrderError RemoteOrderState = "error"
)

// IsValid returns true if the state is valid
func (s RemoteOrderState) IsValid() bool {
	switch s {
	case RemoteOrderResolved, RemoteOrderApplied, RemoteOrderError:
		return true
	default:
		return false
	}
}

// RemoteOrder is an order pulled from a channel. (ConnectionID, RemoteOrderID) is unique.
type RemoteOrder struct {
	ID              uuid.UUID
	SupplierID      uuid.UUID
	ConnectionID    uuid.UUID
	RemoteOrderID   string
	RemoteListingID string
	Quantity        int
	UnitPrice       decimal.Decimal
	OrderedAt       time.Time
	State           RemoteOrderState
	LocalProductID  *uuid.UUID
	MappingID       *uuid.UUID
	ErrorMessage    string
	Shortfall       int
	PulledAt        time.Time
	AppliedAt       *time.Time
}

// NewResolvedRemoteOrder records an order whose listing maps to a local product
func NewResolvedRemoteOrder(conn *ChannelConnection, data RemoteOrderData, mapping *ProductChannelMapping, at time.Time) *RemoteOrder {
	o := newRemoteOrder(conn, data, at)
	productID := mapping.LocalProductID
	mappingID := mapping.ID
	o.State = RemoteOrderResolved
	o.LocalProductID = &productID
	o.MappingID = &mappingID
	return o
}

// NewUnresolvedRemoteOrder records an order that could not be matched to a mapping
func NewUnresolvedRemoteOrder(conn *ChannelConnection, data RemoteOrderData, at time.Time) *RemoteOrder {
	o := newRemoteOrder(conn, data, at)
	o.State = RemoteOrderError
	if data.RemoteListingID == "" {
		o.ErrorMessage = "order carries no remote listing ID"
	} else {
		o.ErrorMessage = fmt.Sprintf("no mapping for remote listing %q on connection %s", data.RemoteListingID, conn.ID)
	}
	return o
}

func newRemoteOrder(conn *ChannelConnection, data RemoteOrderData, at time.Time) *RemoteOrder {
	return &RemoteOrder{
		ID:              uuid.New(),
		SupplierID:      conn.SupplierID,
		ConnectionID:    conn.ID,
		RemoteOrderID:   data.RemoteOrderID,
		RemoteListingID: data.RemoteListingID,
		Quantity:        data.Quantity,
		UnitPrice:       data.UnitPrice,
		OrderedAt:       data.CreatedAt,
		PulledAt:        at,
	}
}

// MarkApplied records that stock was decremented for this order
func (o *RemoteOrder) MarkApplied(shortfall int, at time.Time) {
	o.State = RemoteOrderApplied
	o.Shortfall = shortfall
	o.AppliedAt = &at
	if shortfall > 0 {
		o.ErrorMessage = fmt.Sprintf("oversold by %d units", shortfall)
	}
}

// MarkApplyFailed tags the order as error when its product can no longer be found
func (o *RemoteOrder) MarkApplyFailed(message string) {
	o.State = RemoteOrderError
	o.ErrorMessage = truncate(message)
}
