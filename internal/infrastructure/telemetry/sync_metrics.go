package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records ingestion decisions and reconciliation activity.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	ingestions   *Counter
	passes       *Counter
	passDuration *Histogram
	attempts     *Counter
	orders       *Counter
}

// NewSyncMetrics creates the catalog metric instruments
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	var (
		m   SyncMetrics
		err error
	)
	if m.ingestions, err = NewCounter(meter, "catalog_ingestions_total",
		"Ingestion requests by decision", "{ingestions}"); err != nil {
		return nil, err
	}
	if m.passes, err = NewCounter(meter, "catalog_sync_passes_total",
		"Reconciliation passes by channel type and outcome", "{passes}"); err != nil {
		return nil, err
	}
	if m.passDuration, err = NewHistogram(meter, "catalog_sync_pass_duration_seconds",
		"Reconciliation pass duration", "s", PassDurationBuckets); err != nil {
		return nil, err
	}
	if m.attempts, err = NewCounter(meter, "catalog_sync_attempts_total",
		"Remote sync calls by direction and outcome", "{attempts}"); err != nil {
		return nil, err
	}
	if m.orders, err = NewCounter(meter, "catalog_remote_orders_total",
		"Pulled remote orders by state", "{orders}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordIngestion counts one ingestion outcome, e.g. "auto_approve" or "review"
func (m *SyncMetrics) RecordIngestion(ctx context.Context, decision string) {
	if m == nil {
		return
	}
	m.ingestions.Inc(ctx, AttrDecision.String(decision))
}

// RecordPass counts a finished pass and its duration
func (m *SyncMetrics) RecordPass(ctx context.Context, channelType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.Inc(ctx, AttrChannelType.String(channelType), AttrOutcome.String(outcome))
	m.passDuration.RecordDuration(ctx, d, AttrChannelType.String(channelType))
}

// RecordAttempt counts one appended sync attempt
func (m *SyncMetrics) RecordAttempt(ctx context.Context, direction, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Inc(ctx, AttrDirection.String(direction), AttrOutcome.String(outcome))
}

// RecordOrder counts one newly stored remote order
func (m *SyncMetrics) RecordOrder(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.orders.Inc(ctx, AttrOrderState.String(state))
}
