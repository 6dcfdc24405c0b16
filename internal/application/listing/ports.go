package listing

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/google/uuid"
)

// TaskSubmitter runs fire-and-forget work with a recorded outcome
type TaskSubmitter interface {
	Submit(ctx context.Context, kind, key string, fn func(ctx context.Context) error) error
}

// SyncEnqueuer hands a freshly activated product to the synchronization engine
type SyncEnqueuer interface {
	EnqueueProduct(ctx context.Context, supplierID, productID uuid.UUID) error
}

// ChannelSyncNotifier is told when a product's price, stock or status changed
// so its channel mappings are reconciled on the next pass.
type ChannelSyncNotifier interface {
	ProductChanged(ctx context.Context, productID uuid.UUID) error
}

// SnapshotArchiver stores the raw candidate for later diagnosis
type SnapshotArchiver interface {
	ArchiveCandidate(ctx context.Context, supplierID uuid.UUID, candidate *listing.CandidateListing) (string, error)
}
