package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnectionRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormConnectionRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()

	conn := newConnection(t, supplierID)
	require.NoError(t, repo.Create(ctx, conn))
	other := newConnection(t, uuid.New())
	require.NoError(t, repo.Create(ctx, other))

	found, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), found.SealedCredentials)
	assert.Equal(t, integration.ChannelType("marketplace_a"), found.ChannelType)

	bySupplier, err := repo.FindBySupplier(ctx, supplierID)
	require.NoError(t, err)
	require.Len(t, bySupplier, 1)
	assert.Equal(t, conn.ID, bySupplier[0].ID)

	linked, err := repo.FindLinked(ctx)
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	require.NoError(t, found.Unlink(time.Now()))
	require.NoError(t, repo.Save(ctx, found))

	bySupplier, err = repo.FindBySupplier(ctx, supplierID)
	require.NoError(t, err)
	assert.Empty(t, bySupplier)
	linked, err = repo.FindLinked(ctx)
	require.NoError(t, err)
	assert.Len(t, linked, 1)

	unlinked, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, unlinked.IsUnlinked())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrConnectionNotFound)
}

func TestGormConnectionRepository_SaveSyncStateSkipsUnlinked(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormConnectionRepository(db)
	ctx := context.Background()

	conn := newConnection(t, uuid.New())
	require.NoError(t, repo.Create(ctx, conn))

	// A pass holds a stale copy while the connection is disconnected
	stale, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)

	fresh, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	require.NoError(t, fresh.Unlink(time.Now()))
	require.NoError(t, repo.Save(ctx, fresh))

	stale.MarkInventorySynced(time.Now())
	stale.RecordCallFailure("timeout", 5)
	require.NoError(t, repo.SaveSyncState(ctx, stale))

	stored, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsUnlinked())
	assert.Nil(t, stored.LastInventorySync)
	assert.Zero(t, stored.ConsecutiveFailures)

	ghost := newConnection(t, uuid.New())
	assert.ErrorIs(t, repo.SaveSyncState(ctx, ghost), integration.ErrConnectionNotFound)
}

func TestGormConnectionRepository_SaveSyncStateWritesLinked(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormConnectionRepository(db)
	ctx := context.Background()

	conn := newConnection(t, uuid.New())
	require.NoError(t, repo.Create(ctx, conn))

	at := time.Now().UTC().Truncate(time.Second)
	conn.MarkInventorySynced(at)
	conn.RecordCallFailure("upstream 503", 5)
	require.NoError(t, repo.SaveSyncState(ctx, conn))

	stored, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastInventorySync)
	assert.True(t, stored.LastInventorySync.Equal(at))
	assert.Equal(t, 1, stored.ConsecutiveFailures)
	assert.Equal(t, "upstream 503", stored.LastErrorMessage)
}

func TestGormMappingRepository_CreateAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMappingRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()
	productID := uuid.New()
	connID := uuid.New()

	mapping := integration.NewProductChannelMapping(supplierID, productID, connID)
	require.NoError(t, repo.Create(ctx, mapping))

	dup := integration.NewProductChannelMapping(supplierID, productID, connID)
	assert.ErrorIs(t, repo.Create(ctx, dup), integration.ErrMappingExists)

	found, err := repo.FindByProductAndConnection(ctx, productID, connID)
	require.NoError(t, err)
	assert.Equal(t, mapping.ID, found.ID)
	assert.Equal(t, integration.SyncStateUnsynced, found.SyncState)
	assert.False(t, found.HasRemoteListing())

	require.NoError(t, found.AssignRemoteListingID("R-100"))
	found.MarkSynced(decimal.RequireFromString("12.50"), 4, time.Now())
	require.NoError(t, repo.Save(ctx, found))

	byRemote, err := repo.FindByRemoteListingID(ctx, connID, "R-100")
	require.NoError(t, err)
	assert.Equal(t, mapping.ID, byRemote.ID)
	assert.Equal(t, integration.SyncStateInSync, byRemote.SyncState)
	assert.Equal(t, 4, byRemote.LastSyncedQuantity)
	assert.True(t, byRemote.LastSyncedPrice.Equal(decimal.RequireFromString("12.50")))

	_, err = repo.FindByRemoteListingID(ctx, connID, "R-404")
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)

	assert.ErrorIs(t, repo.Save(ctx, dup), integration.ErrMappingNotFound)
}

func TestGormMappingRepository_Selections(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMappingRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()
	connID := uuid.New()
	productID := uuid.New()

	unsynced := integration.NewProductChannelMapping(supplierID, productID, connID)
	require.NoError(t, repo.Create(ctx, unsynced))

	inSync := integration.NewProductChannelMapping(supplierID, uuid.New(), connID)
	require.NoError(t, inSync.AssignRemoteListingID("R-1"))
	inSync.MarkSynced(decimal.NewFromInt(5), 1, time.Now())
	require.NoError(t, repo.Create(ctx, inSync))

	drifted := integration.NewProductChannelMapping(supplierID, productID, uuid.New())
	require.NoError(t, drifted.AssignRemoteListingID("R-2"))
	drifted.MarkDrifted(time.Now())
	require.NoError(t, repo.Create(ctx, drifted))

	pushable, err := repo.FindPushable(ctx, connID)
	require.NoError(t, err)
	require.Len(t, pushable, 1)
	assert.Equal(t, unsynced.ID, pushable[0].ID)

	withRemote, err := repo.FindWithRemoteListing(ctx, connID)
	require.NoError(t, err)
	require.Len(t, withRemote, 1)
	assert.Equal(t, inSync.ID, withRemote[0].ID)

	listed, err := repo.List(ctx, integration.MappingFilter{ProductID: &productID})
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	listed, err = repo.List(ctx, integration.MappingFilter{
		SupplierID: &supplierID,
		States:     []integration.SyncState{integration.SyncStateInSync},
	})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, inSync.ID, listed[0].ID)

	synced := integration.NewProductChannelMapping(supplierID, productID, uuid.New())
	require.NoError(t, synced.AssignRemoteListingID("R-3"))
	synced.MarkSynced(decimal.NewFromInt(5), 1, time.Now())
	require.NoError(t, repo.Create(ctx, synced))

	changed, err := repo.MarkUnsyncedByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	stored, err := repo.FindByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStateUnsynced, stored.SyncState)
	stored, err = repo.FindByID(ctx, drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncStateDrifted, stored.SyncState, "drift keeps its forced push")
}

func TestGormMappingRepository_RemoteListingIsUniquePerConnection(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMappingRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()
	connID := uuid.New()

	first := integration.NewProductChannelMapping(supplierID, uuid.New(), connID)
	require.NoError(t, repo.Create(ctx, first))
	second := integration.NewProductChannelMapping(supplierID, uuid.New(), connID)
	require.NoError(t, repo.Create(ctx, second))
	elsewhere := integration.NewProductChannelMapping(supplierID, uuid.New(), uuid.New())
	require.NoError(t, repo.Create(ctx, elsewhere))

	require.NoError(t, first.AssignRemoteListingID("R-7"))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.AssignRemoteListingID("R-7"))
	assert.ErrorIs(t, repo.Save(ctx, second), integration.ErrRemoteListingAssigned)

	// another connection may reuse the remote ID
	require.NoError(t, elsewhere.AssignRemoteListingID("R-7"))
	require.NoError(t, repo.Save(ctx, elsewhere))

	holder, err := repo.FindByRemoteListingID(ctx, connID, "R-7")
	require.NoError(t, err)
	assert.Equal(t, first.ID, holder.ID)
}

func TestGormSyncAttemptRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSyncAttemptRepository(db)
	ctx := context.Background()
	connID := uuid.New()
	mappingA := uuid.New()
	mappingB := uuid.New()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Append(ctx, integration.NewSyncAttempt(connID, &mappingA, integration.DirectionPushPrice, errors.New("boom"), base)))
	require.NoError(t, repo.Append(ctx, integration.NewSyncAttempt(connID, &mappingA, integration.DirectionPushPrice, nil, base.Add(time.Minute))))
	require.NoError(t, repo.Append(ctx, integration.NewSyncAttempt(connID, &mappingB, integration.DirectionPushInventory, errors.New("timeout"), base.Add(2*time.Minute))))
	require.NoError(t, repo.Append(ctx, integration.NewSyncAttempt(connID, nil, integration.DirectionPullOrders, nil, base.Add(3*time.Minute))))

	latest, err := repo.LatestByMappings(ctx, []uuid.UUID{mappingA, mappingB, uuid.New()})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, integration.OutcomeSuccess, latest[mappingA].Outcome)
	assert.Equal(t, integration.OutcomeFailure, latest[mappingB].Outcome)
	assert.Equal(t, "timeout", latest[mappingB].ErrorDetail)

	empty, err := repo.LatestByMappings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	recent, err := repo.ListByConnection(ctx, connID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, integration.DirectionPullOrders, recent[0].Direction)
	assert.Nil(t, recent[0].MappingID)
}

func TestGormRemoteOrderRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRemoteOrderRepository(db)
	ctx := context.Background()
	conn := newConnection(t, uuid.New())
	mapping := integration.NewProductChannelMapping(conn.SupplierID, uuid.New(), conn.ID)
	now := time.Now()

	data := integration.RemoteOrderData{
		RemoteOrderID:   "O-1",
		RemoteListingID: "R-1",
		Quantity:        2,
		UnitPrice:       decimal.RequireFromString("9.50"),
		CreatedAt:       now.Add(-time.Hour),
	}
	inserted, err := repo.CreateIfAbsent(ctx, integration.NewResolvedRemoteOrder(conn, data, mapping, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.CreateIfAbsent(ctx, integration.NewResolvedRemoteOrder(conn, data, mapping, now))
	require.NoError(t, err)
	assert.False(t, inserted)

	orphan := data
	orphan.RemoteOrderID = "O-2"
	orphan.RemoteListingID = "R-unknown"
	inserted, err = repo.CreateIfAbsent(ctx, integration.NewUnresolvedRemoteOrder(conn, orphan, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	resolved, err := repo.FindResolved(ctx, conn.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "O-1", resolved[0].RemoteOrderID)
	require.NotNil(t, resolved[0].LocalProductID)
	assert.Equal(t, mapping.LocalProductID, *resolved[0].LocalProductID)

	order := resolved[0]
	order.MarkApplied(1, now)
	require.NoError(t, repo.Save(ctx, &order))

	resolved, err = repo.FindResolved(ctx, conn.ID)
	require.NoError(t, err)
	assert.Empty(t, resolved)

	errState := integration.RemoteOrderError
	errored, err := repo.List(ctx, conn.ID, &errState, 10)
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Contains(t, errored[0].ErrorMessage, "R-unknown")

	all, err := repo.List(ctx, conn.ID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGormRemoteOrderRepository_CreateIfAbsentSQL(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormRemoteOrderRepository(db)

	conn := newConnection(t, uuid.New())
	mapping := integration.NewProductChannelMapping(conn.SupplierID, uuid.New(), conn.ID)
	order := integration.NewResolvedRemoteOrder(conn, integration.RemoteOrderData{
		RemoteOrderID:   "O-9",
		RemoteListingID: "R-9",
		Quantity:        1,
		UnitPrice:       decimal.NewFromInt(3),
		CreatedAt:       time.Now(),
	}, mapping, time.Now())

	mock.ExpectExec(`INSERT INTO "remote_orders" .* ON CONFLICT \("connection_id","remote_order_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.CreateIfAbsent(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConnectionRepository_SaveSyncStateSQL(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormConnectionRepository(db)

	conn := newConnection(t, uuid.New())
	mock.ExpectExec(`UPDATE "channel_connections" SET .* WHERE \(?id = \$\d+ AND unlinked_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveSyncState(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}
