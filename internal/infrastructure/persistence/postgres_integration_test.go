//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgres starts a throwaway PostgreSQL container and applies the embedded migrations
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("catalogsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), GormConfig("silent", 0, nil))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.NewEmbedded(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestPostgres_ProductRecordSourceURLIsUniquePerSupplier(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGormProductRecordRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()
	url := "https://shop.example.com/p/stove"

	first := newPendingRecord(t, supplierID, url, "Outdoor")
	require.NoError(t, repo.Create(ctx, first))

	dup := newPendingRecord(t, supplierID, url, "Outdoor")
	assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)

	// a different supplier may list the same URL
	other := newPendingRecord(t, uuid.New(), url, "Outdoor")
	require.NoError(t, repo.Create(ctx, other))

	holder, err := repo.FindHolderOfSourceURL(ctx, supplierID, url)
	require.NoError(t, err)
	assert.Equal(t, first.ID, holder.ID)

	require.NoError(t, repo.Delete(ctx, first.ID))
	again := newPendingRecord(t, supplierID, url, "Outdoor")
	assert.NoError(t, repo.Create(ctx, again))
}

func TestPostgres_ProductRecordOptimisticSave(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGormProductRecordRepository(db)
	ctx := context.Background()

	record := newPendingRecord(t, uuid.New(), "https://shop.example.com/p/lamp", "Lighting")
	require.NoError(t, repo.Create(ctx, record))

	a, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)

	require.NoError(t, a.Approve("reviewer@example.com", ""))
	require.NoError(t, repo.Save(ctx, a))

	require.NoError(t, b.Approve("other@example.com", ""))
	assert.ErrorIs(t, repo.Save(ctx, b), listing.ErrVersionConflict)

	transitions, err := repo.ListTransitions(ctx, record.ID)
	require.NoError(t, err)
	statuses := make([]listing.Status, len(transitions))
	for i, tr := range transitions {
		statuses[i] = tr.To
	}
	assert.ElementsMatch(t, []listing.Status{listing.StatusPendingReview, listing.StatusApproved, listing.StatusActive}, statuses)
}

func TestPostgres_ArchivedRecordReleasesSourceURL(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGormProductRecordRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()
	url := "https://shop.example.com/p/tent"

	record := newPendingRecord(t, supplierID, url, "Outdoor")
	require.NoError(t, repo.Create(ctx, record))
	require.NoError(t, record.Approve("reviewer@example.com", ""))
	require.NoError(t, repo.Save(ctx, record))
	require.NoError(t, record.Archive("reviewer@example.com", "discontinued"))
	require.NoError(t, repo.Save(ctx, record))

	_, err := repo.FindHolderOfSourceURL(ctx, supplierID, url)
	assert.ErrorIs(t, err, listing.ErrProductNotFound)

	relisted := newPendingRecord(t, supplierID, url, "Outdoor")
	assert.NoError(t, repo.Create(ctx, relisted))
}
