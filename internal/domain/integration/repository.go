package integration

import (
	"context"

	"github.com/google/uuid"
)

// ConnectionRepository persists channel connections
type ConnectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ChannelConnection, error)
	// FindBySupplier lists linked (not unlinked) connections of a supplier
	FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]ChannelConnection, error)
	// FindLinked lists every linked connection, for the scheduler
	FindLinked(ctx context.Context) ([]ChannelConnection, error)
	Create(ctx context.Context, conn *ChannelConnection) error
	Save(ctx context.Context, conn *ChannelConnection) error
	// SaveSyncState writes only health and watermark columns, and only while
	// the connection is still linked, so a pass cannot undo a disconnect.
	SaveSyncState(ctx context.Context, conn *ChannelConnection) error
}

// MappingFilter narrows a mapping listing
type MappingFilter struct {
	ConnectionID *uuid.UUID
	ProductID    *uuid.UUID
	SupplierID   *uuid.UUID
	States       []SyncState
}

// MappingRepository persists product-channel mappings
type MappingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ProductChannelMapping, error)
	FindByProductAndConnection(ctx context.Context, productID, connectionID uuid.UUID) (*ProductChannelMapping, error)
	FindByRemoteListingID(ctx context.Context, connectionID uuid.UUID, remoteListingID string) (*ProductChannelMapping, error)
	// FindPushable returns mappings of a connection whose state needs an outbound step, oldest update first
	FindPushable(ctx context.Context, connectionID uuid.UUID) ([]ProductChannelMapping, error)
	// FindWithRemoteListing returns mappings of a connection that have a remote listing
	FindWithRemoteListing(ctx context.Context, connectionID uuid.UUID) ([]ProductChannelMapping, error)
	List(ctx context.Context, filter MappingFilter) ([]ProductChannelMapping, error)
	// Create inserts a mapping; returns ErrMappingExists if (product, connection) is taken
	Create(ctx context.Context, mapping *ProductChannelMapping) error
	Save(ctx context.Context, mapping *ProductChannelMapping) error
	// MarkUnsyncedByProduct moves every in_sync mapping of a product to unsynced.
	// Drifted and errored mappings are already queued and keep their state.
	MarkUnsyncedByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// SyncAttemptRepository is append-only
type SyncAttemptRepository interface {
	Append(ctx context.Context, attempt *SyncAttempt) error
	// LatestByMappings returns the newest attempt per mapping ID
	LatestByMappings(ctx context.Context, mappingIDs []uuid.UUID) (map[uuid.UUID]SyncAttempt, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]SyncAttempt, error)
}

// RemoteOrderRepository persists pulled orders
type RemoteOrderRepository interface {
	// CreateIfAbsent inserts the order unless (connection, remote order id) exists.
	// It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, order *RemoteOrder) (bool, error)
	// FindResolved returns orders of a connection awaiting stock application, oldest first
	FindResolved(ctx context.Context, connectionID uuid.UUID) ([]RemoteOrder, error)
	List(ctx context.Context, connectionID uuid.UUID, state *RemoteOrderState, limit int) ([]RemoteOrder, error)
	Save(ctx context.Context, order *RemoteOrder) error
}
