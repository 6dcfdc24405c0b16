package integration

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ConnectionStatus is the health of a channel connection
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionError        ConnectionStatus = "error"
)

// IsValid returns true if the status is valid
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionConnected, ConnectionDisconnected, ConnectionError:
		return true
	default:
		return false
	}
}

// maxErrorMessageLen bounds stored error text
const maxErrorMessageLen = 1000

// ChannelConnection is one supplier's link to one external channel.
// It is never hard-deleted while mappings reference it; Unlink soft-deletes it.
type ChannelConnection struct {
	shared.SupplierAggregateRoot
	ChannelType       ChannelType
	SealedCredentials []byte
	Status            ConnectionStatus
	// AutoPublish creates mappings for newly activated products of the supplier
	AutoPublish         bool
	LastOrderSync       *time.Time
	LastInventorySync   *time.Time
	LastDriftCheck      *time.Time
	LastHealthCheck     *time.Time
	LastErrorMessage    string
	ConsecutiveFailures int
	UnlinkedAt          *time.Time
}

// NewChannelConnection creates a connection that has not yet been health-checked.
// It starts disconnected so the scheduler probes it before the first pass.
func NewChannelConnection(supplierID uuid.UUID, channelType ChannelType, sealed []byte, autoPublish bool) (*ChannelConnection, error) {
	if supplierID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeMissingField, "supplier_id is required")
	}
	if !channelType.IsValid() {
		return nil, ErrInvalidChannelType
	}
	if len(sealed) == 0 {
		return nil, ErrCredentialsRequired
	}
	return &ChannelConnection{
		SupplierAggregateRoot: shared.NewSupplierAggregateRoot(supplierID),
		ChannelType:           channelType,
		SealedCredentials:     sealed,
		Status:                ConnectionDisconnected,
		AutoPublish:           autoPublish,
	}, nil
}

// IsUnlinked reports whether the supplier disconnected this channel
func (c *ChannelConnection) IsUnlinked() bool {
	return c.UnlinkedAt != nil
}

// Schedulable reports whether the sync engine should run passes for this connection.
// Connections in error wait for a successful health check.
func (c *ChannelConnection) Schedulable() bool {
	return !c.IsUnlinked() && c.Status == ConnectionConnected
}

// MarkHealthy records a successful probe or remote call
func (c *ChannelConnection) MarkHealthy(at time.Time) {
	c.Status = ConnectionConnected
	c.LastErrorMessage = ""
	c.ConsecutiveFailures = 0
	c.LastHealthCheck = &at
	c.touch()
}

// MarkAuthFailed moves the connection to error; an operator must re-authenticate
func (c *ChannelConnection) MarkAuthFailed(message string, at time.Time) {
	c.Status = ConnectionError
	c.LastErrorMessage = truncate(message)
	c.LastHealthCheck = &at
	c.touch()
}

// MarkUnreachable moves the connection to disconnected; it will be probed again
func (c *ChannelConnection) MarkUnreachable(message string, at time.Time) {
	c.Status = ConnectionDisconnected
	c.LastErrorMessage = truncate(message)
	c.LastHealthCheck = &at
	c.touch()
}

// RecordCallSuccess resets the channel-wide failure run
func (c *ChannelConnection) RecordCallSuccess() {
	c.ConsecutiveFailures = 0
}

// RecordCallFailure extends the channel-wide failure run and trips the
// connection to error once threshold consecutive failures are reached.
// It reports whether this call tripped the connection.
func (c *ChannelConnection) RecordCallFailure(message string, threshold int) bool {
	c.ConsecutiveFailures++
	c.LastErrorMessage = truncate(message)
	c.touch()
	if threshold > 0 && c.ConsecutiveFailures >= threshold && c.Status != ConnectionError {
		c.Status = ConnectionError
		return true
	}
	return false
}

// MarkInventorySynced records the end of an outbound push
func (c *ChannelConnection) MarkInventorySynced(at time.Time) {
	c.LastInventorySync = &at
	c.touch()
}

// MarkOrdersSynced advances the inbound watermark
func (c *ChannelConnection) MarkOrdersSynced(watermark time.Time) {
	c.LastOrderSync = &watermark
	c.touch()
}

// MarkDriftChecked records a completed drift detection
func (c *ChannelConnection) MarkDriftChecked(at time.Time) {
	c.LastDriftCheck = &at
	c.touch()
}

// DriftCheckDue reports whether drift detection should run at now
func (c *ChannelConnection) DriftCheckDue(now time.Time, interval time.Duration) bool {
	return c.LastDriftCheck == nil || now.Sub(*c.LastDriftCheck) >= interval
}

// OrderWatermark returns the time to fetch orders after
func (c *ChannelConnection) OrderWatermark(lookback time.Duration, now time.Time) time.Time {
	if c.LastOrderSync != nil {
		return *c.LastOrderSync
	}
	return now.Add(-lookback)
}

// Unlink soft-deletes the connection
func (c *ChannelConnection) Unlink(at time.Time) error {
	if c.IsUnlinked() {
		return ErrConnectionUnlinked
	}
	c.UnlinkedAt = &at
	c.Status = ConnectionDisconnected
	c.touch()
	return nil
}

// ReplaceCredentials stores new sealed credentials and clears the error state
// so the connection is probed again.
func (c *ChannelConnection) ReplaceCredentials(sealed []byte) error {
	if len(sealed) == 0 {
		return ErrCredentialsRequired
	}
	if c.IsUnlinked() {
		return ErrConnectionUnlinked
	}
	c.SealedCredentials = sealed
	c.Status = ConnectionDisconnected
	c.ConsecutiveFailures = 0
	c.LastErrorMessage = ""
	c.touch()
	return nil
}

func (c *ChannelConnection) touch() {
	c.UpdatedAt = time.Now()
}

// truncate bounds msg to maxErrorMessageLen bytes without splitting a rune
func truncate(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
