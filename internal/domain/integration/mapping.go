package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncState is the reconciliation state of one mapping
type SyncState string

const (
	SyncStateUnsynced SyncState = "unsynced"
	SyncStateInSync   SyncState = "in_sync"
	SyncStateDrifted  SyncState = "drifted"
	SyncStateError    SyncState = "error"
)

// IsValid returns true if the state is valid
func (s SyncState) IsValid() bool {
	switch s {
	case SyncStateUnsynced, SyncStateInSync, SyncStateDrifted, SyncStateError:
		return true
	default:
		return false
	}
}

// NeedsPush reports whether the outbound step of a pass should look at the mapping
func (s SyncState) NeedsPush() bool {
	return s == SyncStateUnsynced || s == SyncStateDrifted || s == SyncStateError
}

// BackoffPolicy computes capped exponential retry delays
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoffPolicy returns a 30s base capped at 30 minutes
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Base: 30 * time.Second, Cap: 30 * time.Minute}
}

// Delay returns the wait after the given number of consecutive failures
func (b BackoffPolicy) Delay(failures int) time.Duration {
	if failures <= 0 || b.Base <= 0 {
		return 0
	}
	delay := b.Base
	for i := 1; i < failures; i++ {
		delay *= 2
		if b.Cap > 0 && delay >= b.Cap {
			return b.Cap
		}
	}
	if b.Cap > 0 && delay > b.Cap {
		return b.Cap
	}
	return delay
}

// ProductChannelMapping links one product record to its listing on one connection.
// At most one mapping exists per (product, connection). RemoteListingID is
// assigned on the first successful push and never changes afterwards.
type ProductChannelMapping struct {
	ID                  uuid.UUID
	SupplierID          uuid.UUID
	LocalProductID      uuid.UUID
	ChannelConnectionID uuid.UUID
	RemoteListingID     *string
	LastSyncedPrice     decimal.Decimal
	LastSyncedQuantity  int
	SyncState           SyncState
	ConsecutiveFailures int
	LastAttemptAt       *time.Time
	NextAttemptAt       *time.Time
	LastError           string
	// Deactivated is set once the remote listing was taken off sale after archival
	Deactivated bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProductChannelMapping creates an unsynced mapping
func NewProductChannelMapping(supplierID, productID, connectionID uuid.UUID) *ProductChannelMapping {
	now := time.Now()
	return &ProductChannelMapping{
		ID:                  uuid.New(),
		SupplierID:          supplierID,
		LocalProductID:      productID,
		ChannelConnectionID: connectionID,
		LastSyncedPrice:     decimal.Zero,
		SyncState:           SyncStateUnsynced,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// HasRemoteListing reports whether the first push has succeeded
func (m *ProductChannelMapping) HasRemoteListing() bool {
	return m.RemoteListingID != nil && *m.RemoteListingID != ""
}

// RemoteID returns the remote listing ID or ""
func (m *ProductChannelMapping) RemoteID() string {
	if m.RemoteListingID == nil {
		return ""
	}
	return *m.RemoteListingID
}

// PriceDelta reports whether price differs from the last synced price
func (m *ProductChannelMapping) PriceDelta(price decimal.Decimal) bool {
	return !m.HasRemoteListing() || !m.LastSyncedPrice.Equal(price)
}

// QuantityDelta reports whether quantity differs from the last synced quantity
func (m *ProductChannelMapping) QuantityDelta(quantity int) bool {
	return !m.HasRemoteListing() || m.LastSyncedQuantity != quantity
}

// HasDelta reports whether any pushed value differs from local authoritative values
func (m *ProductChannelMapping) HasDelta(price decimal.Decimal, quantity int) bool {
	return m.PriceDelta(price) || m.QuantityDelta(quantity)
}

// ReadyForAttempt reports whether backoff allows a remote call at now
func (m *ProductChannelMapping) ReadyForAttempt(now time.Time) bool {
	return m.NextAttemptAt == nil || !now.Before(*m.NextAttemptAt)
}

// AssignRemoteListingID sets the remote ID once. Re-assigning the same value is a no-op.
func (m *ProductChannelMapping) AssignRemoteListingID(remoteID string) error {
	if remoteID == "" {
		return ErrChannelInvalidResponse
	}
	if m.HasRemoteListing() {
		if *m.RemoteListingID == remoteID {
			return nil
		}
		return ErrRemoteListingAssigned
	}
	m.RemoteListingID = &remoteID
	return nil
}

// MarkSynced records values confirmed by the channel and clears backoff
func (m *ProductChannelMapping) MarkSynced(price decimal.Decimal, quantity int, at time.Time) {
	m.LastSyncedPrice = price
	m.LastSyncedQuantity = quantity
	m.markInSync(at)
}

// MarkInSyncWithoutCall records that no delta existed
func (m *ProductChannelMapping) MarkInSyncWithoutCall(at time.Time) {
	m.markInSync(at)
}

func (m *ProductChannelMapping) markInSync(at time.Time) {
	m.SyncState = SyncStateInSync
	m.ConsecutiveFailures = 0
	m.NextAttemptAt = nil
	m.LastError = ""
	m.UpdatedAt = at
}

// MarkFailed sets error state and schedules the next attempt.
// Last synced values are left untouched so the same delta is retried.
func (m *ProductChannelMapping) MarkFailed(message string, at time.Time, backoff BackoffPolicy) {
	m.SyncState = SyncStateError
	m.ConsecutiveFailures++
	m.LastAttemptAt = &at
	next := at.Add(backoff.Delay(m.ConsecutiveFailures))
	m.NextAttemptAt = &next
	m.LastError = truncate(message)
	m.UpdatedAt = at
}

// RecordAttempt stamps the time of a remote call
func (m *ProductChannelMapping) RecordAttempt(at time.Time) {
	m.LastAttemptAt = &at
}

// MarkUnsynced queues the mapping for the next outbound step
func (m *ProductChannelMapping) MarkUnsynced() {
	if m.SyncState == SyncStateError {
		return
	}
	m.SyncState = SyncStateUnsynced
	m.UpdatedAt = time.Now()
}

// MarkDrifted flags an out-of-band remote change
func (m *ProductChannelMapping) MarkDrifted(at time.Time) {
	m.SyncState = SyncStateDrifted
	m.UpdatedAt = at
}

// MarkDeactivated records that the remote listing was taken off sale
func (m *ProductChannelMapping) MarkDeactivated(at time.Time) {
	m.Deactivated = true
	m.LastSyncedQuantity = 0
	m.markInSync(at)
}

// DetectDrift compares the remote state with the last synced values
func (m *ProductChannelMapping) DetectDrift(remote RemoteListingState) bool {
	if !m.HasRemoteListing() || m.SyncState != SyncStateInSync {
		return false
	}
	if m.Deactivated {
		return remote.Active
	}
	return !remote.Price.Equal(m.LastSyncedPrice) || remote.Quantity != m.LastSyncedQuantity || !remote.Active
}
