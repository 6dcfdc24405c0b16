package integration

import (
	"time"

	"github.com/google/uuid"
)

// SyncDirection is the kind of remote call recorded by a SyncAttempt
type SyncDirection string

const (
	DirectionPushInventory SyncDirection = "push_inventory"
	DirectionPushPrice     SyncDirection = "push_price"
	DirectionPullOrders    SyncDirection = "pull_orders"
	DirectionDriftCheck    SyncDirection = "drift_check"
	DirectionDeactivate    SyncDirection = "deactivate"
)

// SyncOutcome is the result of a SyncAttempt
type SyncOutcome string

const (
	OutcomeSuccess SyncOutcome = "success"
	OutcomeFailure SyncOutcome = "failure"
)

// SyncAttempt is an append-only audit entry. It is never updated.
// MappingID is nil for connection-wide calls such as order pulls.
type SyncAttempt struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID
	MappingID    *uuid.UUID
	Direction    SyncDirection
	Outcome      SyncOutcome
	ErrorDetail  string
	AttemptedAt  time.Time
}

// NewSyncAttempt creates an attempt record; err == nil means success
func NewSyncAttempt(connectionID uuid.UUID, mappingID *uuid.UUID, direction SyncDirection, err error, at time.Time) *SyncAttempt {
	a := &SyncAttempt{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		MappingID:    mappingID,
		Direction:    direction,
		Outcome:      OutcomeSuccess,
		AttemptedAt:  at,
	}
	if err != nil {
		a.Outcome = OutcomeFailure
		a.ErrorDetail = truncate(err.Error())
	}
	return a
}
