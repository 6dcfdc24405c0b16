package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a migrated in-memory SQLite database.
// The pool is pinned to one connection so every query sees the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig("silent", 0, nil))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX idx_mappings_connection_remote_live
		ON product_channel_mappings (channel_connection_id, remote_listing_id)
		WHERE remote_listing_id IS NOT NULL AND remote_listing_id <> ''`).Error)
	return db
}

// newMockDB returns a GORM handle on a mocked postgres connection
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func newCandidate(url, title, category string) *listing.CandidateListing {
	return &listing.CandidateListing{
		SourceURL: url,
		Fields: listing.FieldSet{
			Title:       title,
			Description: "A sturdy item",
			Price:       decimal.RequireFromString("19.99"),
			Images:      []string{"https://cdn.example.com/a.jpg"},
			Category:    category,
			Tags:        []string{"outdoor"},
		},
		Confidence:  0.92,
		ExtractedAt: time.Now(),
	}
}

func newPendingRecord(t *testing.T, supplierID uuid.UUID, url, category string) *listing.ProductRecord {
	t.Helper()
	record, err := listing.NewPendingProductRecord(supplierID, newCandidate(url, "Camp Stove", category), nil)
	require.NoError(t, err)
	return record
}

func newConnection(t *testing.T, supplierID uuid.UUID) *integration.ChannelConnection {
	t.Helper()
	conn, err := integration.NewChannelConnection(supplierID, integration.ChannelType("marketplace_a"), []byte("sealed"), false)
	require.NoError(t, err)
	return conn
}
