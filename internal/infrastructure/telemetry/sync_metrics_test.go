package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestSyncMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordIngestion(ctx, "auto_approve")
	m.RecordIngestion(ctx, "auto_approve")
	m.RecordIngestion(ctx, "review")
	m.RecordPass(ctx, "marketplace", "completed", 2*time.Second)
	m.RecordAttempt(ctx, "push_price", "success")
	m.RecordOrder(ctx, "error")

	data := collect(t, reader)

	ingestions, ok := data["catalog_ingestions_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range ingestions.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, ingestions.DataPoints, 2)

	duration, ok := data["catalog_sync_pass_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)

	assert.Contains(t, data, "catalog_sync_attempts_total")
	assert.Contains(t, data, "catalog_remote_orders_total")
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.SyncMetrics
	assert.NotPanics(t, func() {
		m.RecordIngestion(context.Background(), "review")
		m.RecordPass(context.Background(), "marketplace", "tripped", time.Second)
		m.RecordAttempt(context.Background(), "pull_orders", "failure")
		m.RecordOrder(context.Background(), "resolved")
	})
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewSyncMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}
