package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	listingapp "github.com/catalogsync/backend/internal/application/listing"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrConnectionNotSchedulable is returned when a pass is requested for a
// connection that is unlinked, in error, or failed its health check.
var ErrConnectionNotSchedulable = errors.New("integration: connection is not schedulable")

// ErrPassInFlight is returned when another replica holds the connection's pass
// lock for longer than one pass budget.
var ErrPassInFlight = errors.New("integration: pass already running for connection")

// ReconcilerConfig holds the timing of reconciliation passes
type ReconcilerConfig struct {
	RemoteCallTimeout time.Duration
	PassBudget        time.Duration
	DriftInterval     time.Duration
	TripThreshold     int
	Backoff           integration.BackoffPolicy
	OrderLookback     time.Duration
	LockTTL           time.Duration
}

// DefaultReconcilerConfig returns the default pass timing
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		RemoteCallTimeout: 15 * time.Second,
		PassBudget:        2 * time.Minute,
		DriftInterval:     30 * time.Minute,
		TripThreshold:     5,
		Backoff:           integration.DefaultBackoffPolicy(),
		OrderLookback:     24 * time.Hour,
		LockTTL:           30 * time.Second,
	}
}

// PassReport summarizes one reconciliation pass
type PassReport struct {
	ConnectionID     uuid.UUID     `json:"connection_id"`
	OrdersApplied    int           `json:"orders_applied"`
	Pushed           int           `json:"pushed"`
	UnchangedInSync  int           `json:"unchanged_in_sync"`
	Deactivated      int           `json:"deactivated"`
	PushFailed       int           `json:"push_failed"`
	BackedOff        int           `json:"backed_off"`
	OrdersPulled     int           `json:"orders_pulled"`
	OrdersUnresolved int           `json:"orders_unresolved"`
	DriftChecked     int           `json:"drift_checked"`
	Drifted          int           `json:"drifted"`
	Tripped          bool          `json:"tripped"`
	Aborted          bool          `json:"aborted"`
	Duration         time.Duration `json:"duration"`
}

// Reconciler runs reconciliation passes for one connection at a time.
// A pass holds the connection lock, so replicas sharing a distributed
// locker never run two passes on the same connection.
type Reconciler struct {
	connections integration.ConnectionRepository
	mappings    integration.MappingRepository
	attempts    integration.SyncAttemptRepository
	orders      integration.RemoteOrderRepository
	products    listing.ProductRecordRepository
	clients     ClientProvider
	health      HealthChecker
	locker      shared.KeyLocker
	config      ReconcilerConfig
	metrics     *telemetry.SyncMetrics
	now         func() time.Time
	logger      *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	connections integration.ConnectionRepository,
	mappings integration.MappingRepository,
	attempts integration.SyncAttemptRepository,
	orders integration.RemoteOrderRepository,
	products listing.ProductRecordRepository,
	clients ClientProvider,
	health HealthChecker,
	locker shared.KeyLocker,
	config ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		connections: connections,
		mappings:    mappings,
		attempts:    attempts,
		orders:      orders,
		products:    products,
		clients:     clients,
		health:      health,
		locker:      locker,
		config:      config,
		now:         time.Now,
		logger:      logger,
	}
}

// SetMetrics sets the metrics recorder
func (r *Reconciler) SetMetrics(m *telemetry.SyncMetrics) {
	r.metrics = m
}

// SetClock replaces the time source
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Candidates returns the connections the scheduler should submit passes for.
// Connections in error wait for an operator-triggered health check.
func (r *Reconciler) Candidates(ctx context.Context) ([]uuid.UUID, error) {
	conns, err := r.connections.FindLinked(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(conns))
	for i := range conns {
		if conns[i].Status == integration.ConnectionError {
			continue
		}
		ids = append(ids, conns[i].ID)
	}
	return ids, nil
}

// RunPass runs one pass: apply resolved orders, push, pull, then drift detection when due.
// A disconnected connection is health-checked first.
func (r *Reconciler) RunPass(ctx context.Context, connectionID uuid.UUID) (*PassReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciler", "run_pass")
	defer span.End()
	telemetry.SetAttribute(span, "connection_id", connectionID.String())

	unlock, err := r.lockConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conn, err := r.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.IsUnlinked() || conn.Status == integration.ConnectionError {
		return nil, ErrConnectionNotSchedulable
	}
	if conn.Status == integration.ConnectionDisconnected {
		if r.health == nil {
			return nil, ErrConnectionNotSchedulable
		}
		conn, err = r.health.HealthCheck(ctx, connectionID)
		if err != nil {
			return nil, err
		}
		if !conn.Schedulable() {
			return nil, ErrConnectionNotSchedulable
		}
	}

	client, err := r.clients.ClientFor(conn)
	if err != nil {
		conn.MarkAuthFailed(err.Error(), r.now())
		r.saveConnection(ctx, conn)
		return nil, err
	}

	passCtx, cancel := context.WithTimeout(ctx, r.config.PassBudget)
	defer cancel()

	started := r.now()
	p := &pass{
		r:      r,
		ctx:    passCtx,
		conn:   conn,
		client: client,
		report: &PassReport{ConnectionID: connectionID},
		logger: r.logger.With(
			zap.String("connection_id", connectionID.String()),
			zap.String("channel_type", conn.ChannelType.String())),
	}

	p.applyResolvedOrders()
	if !p.halted() {
		p.push()
	}
	if !p.halted() {
		p.pull()
	}
	if !p.halted() && conn.DriftCheckDue(r.now(), r.config.DriftInterval) {
		p.detectDrift()
	}

	p.report.Aborted = passCtx.Err() != nil && !p.stopped
	p.report.Duration = r.now().Sub(started)
	r.saveConnection(ctx, conn)

	outcome := "completed"
	switch {
	case p.report.Tripped:
		outcome = "tripped"
	case p.stopped:
		outcome = "auth_failed"
	case p.report.Aborted:
		outcome = "aborted"
	}
	r.metrics.RecordPass(ctx, conn.ChannelType.String(), outcome, p.report.Duration)

	p.logger.Info("Reconciliation pass finished",
		zap.String("outcome", outcome),
		zap.Int("pushed", p.report.Pushed),
		zap.Int("push_failed", p.report.PushFailed),
		zap.Int("orders_pulled", p.report.OrdersPulled),
		zap.Int("orders_unresolved", p.report.OrdersUnresolved),
		zap.Int("orders_applied", p.report.OrdersApplied),
		zap.Int("drifted", p.report.Drifted),
		zap.Duration("duration", p.report.Duration))
	return p.report, nil
}

// ConnectionLockKey is the lock key owning reconciliation of a connection
func ConnectionLockKey(id uuid.UUID) string {
	return "connection:" + id.String()
}

// lockConnection waits at most one pass budget for a pass on another replica.
// The TTL covers the budget plus the final remote call and state saves.
func (r *Reconciler) lockConnection(ctx context.Context, connectionID uuid.UUID) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.config.PassBudget)
	defer cancel()

	ttl := r.config.PassBudget + r.config.RemoteCallTimeout + 10*time.Second
	unlock, err := r.locker.Lock(waitCtx, ConnectionLockKey(connectionID), ttl)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPassInFlight, err)
	}
	return unlock, nil
}

// saveConnection stores health and watermarks even when the pass context is done
func (r *Reconciler) saveConnection(ctx context.Context, conn *integration.ChannelConnection) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.connections.SaveSyncState(saveCtx, conn); err != nil {
		r.logger.Error("Failed to save connection sync state",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
	}
}

// pass holds the state of one RunPass call
type pass struct {
	r      *Reconciler
	ctx    context.Context
	conn   *integration.ChannelConnection
	client integration.ChannelClient
	report *PassReport
	// stopped is set when an auth failure or trip pauses the connection
	stopped bool
	logger  *zap.Logger
}

func (p *pass) halted() bool {
	return p.stopped || p.ctx.Err() != nil
}

// call runs one remote call under its own timeout and updates channel-wide failure
// bookkeeping. errPassExpired is returned when the pass budget ran out.
func (p *pass) call(fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(p.ctx, p.r.config.RemoteCallTimeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		p.conn.RecordCallSuccess()
		return nil
	}
	if p.ctx.Err() != nil {
		return errPassExpired
	}

	switch integration.ClassifyFailure(err) {
	case integration.FailureAuth:
		p.conn.MarkAuthFailed(err.Error(), p.r.now())
		p.stopped = true
		p.logger.Warn("Channel rejected credentials; connection paused", zap.Error(err))
	case integration.FailureConnectivity:
		if p.conn.RecordCallFailure(err.Error(), p.r.config.TripThreshold) {
			p.stopped = true
			p.report.Tripped = true
			p.logger.Warn("Channel tripped after consecutive failures",
				zap.Int("consecutive_failures", p.conn.ConsecutiveFailures),
				zap.Error(err))
		}
	}
	return err
}

var errPassExpired = errors.New("integration: pass budget exhausted")

func (p *pass) appendAttempt(mappingID *uuid.UUID, direction integration.SyncDirection, err error) {
	attempt := integration.NewSyncAttempt(p.conn.ID, mappingID, direction, err, p.r.now())
	if saveErr := p.r.attempts.Append(context.WithoutCancel(p.ctx), attempt); saveErr != nil {
		p.logger.Error("Failed to append sync attempt",
			zap.String("direction", string(direction)),
			zap.Error(saveErr))
	}
	p.r.metrics.RecordAttempt(p.ctx, string(direction), string(attempt.Outcome))
}

func (p *pass) saveMapping(m *integration.ProductChannelMapping) {
	if err := p.r.mappings.Save(context.WithoutCancel(p.ctx), m); err != nil {
		p.logger.Error("Failed to save mapping",
			zap.String("mapping_id", m.ID.String()),
			zap.Error(err))
	}
}

// applyResolvedOrders decrements stock for orders pulled by earlier passes.
// Stock changes then reach the channel through the push step.
func (p *pass) applyResolvedOrders() {
	orders, err := p.r.orders.FindResolved(p.ctx, p.conn.ID)
	if err != nil {
		p.logger.Error("Failed to load resolved orders", zap.Error(err))
		return
	}
	for i := range orders {
		if p.ctx.Err() != nil {
			return
		}
		if err := p.applyOrder(&orders[i]); err != nil {
			p.logger.Warn("Order not applied; will retry next pass",
				zap.String("remote_order_id", orders[i].RemoteOrderID),
				zap.Error(err))
		}
	}
}

func (p *pass) applyOrder(order *integration.RemoteOrder) error {
	if order.LocalProductID == nil {
		order.MarkApplyFailed("resolved order has no local product")
		return p.r.orders.Save(p.ctx, order)
	}
	productID := *order.LocalProductID

	unlock, err := p.r.locker.Lock(p.ctx, listingapp.ProductLockKey(productID), p.r.config.LockTTL)
	if err != nil {
		return err
	}
	defer unlock()

	product, err := p.r.products.FindByID(p.ctx, productID)
	if errors.Is(err, listing.ErrProductNotFound) {
		order.MarkApplyFailed(fmt.Sprintf("product %s no longer exists", productID))
		return p.r.orders.Save(p.ctx, order)
	}
	if err != nil {
		return err
	}

	shortfall := product.DecrementStock(order.Quantity)
	if err := p.r.products.Save(p.ctx, product); err != nil {
		return err
	}
	order.MarkApplied(shortfall, p.r.now())
	if err := p.r.orders.Save(p.ctx, order); err != nil {
		return err
	}
	if _, err := p.r.mappings.MarkUnsyncedByProduct(p.ctx, productID); err != nil {
		return err
	}

	p.report.OrdersApplied++
	if shortfall > 0 {
		p.logger.Warn("Order oversold local stock",
			zap.String("product_id", productID.String()),
			zap.String("remote_order_id", order.RemoteOrderID),
			zap.Int("shortfall", shortfall))
	}
	return nil
}

// push processes pushable mappings sequentially
func (p *pass) push() {
	mappings, err := p.r.mappings.FindPushable(p.ctx, p.conn.ID)
	if err != nil {
		p.logger.Error("Failed to load pushable mappings", zap.Error(err))
		return
	}
	for i := range mappings {
		if p.halted() {
			return
		}
		m := &mappings[i]
		if !m.ReadyForAttempt(p.r.now()) {
			p.report.BackedOff++
			continue
		}
		p.pushMapping(m)
	}
	if !p.halted() {
		p.conn.MarkInventorySynced(p.r.now())
	}
}

// pushMapping holds the product lock from read to save so a local edit
// lands either before the read or after the mapping is stored.
func (p *pass) pushMapping(m *integration.ProductChannelMapping) {
	unlock, err := p.r.locker.Lock(p.ctx, listingapp.ProductLockKey(m.LocalProductID), p.r.config.LockTTL)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("Failed to lock mapped product",
				zap.String("mapping_id", m.ID.String()),
				zap.Error(err))
		}
		return
	}
	defer unlock()

	product, err := p.r.products.FindByID(p.ctx, m.LocalProductID)
	if err != nil && !errors.Is(err, listing.ErrProductNotFound) {
		p.logger.Error("Failed to load mapped product",
			zap.String("mapping_id", m.ID.String()),
			zap.Error(err))
		return
	}
	if product == nil || !product.IsActive() {
		p.deactivate(m)
		return
	}

	price, quantity := product.Price(), product.Stock
	forced := m.SyncState == integration.SyncStateDrifted
	if !forced && !m.HasDelta(price, quantity) {
		m.MarkInSyncWithoutCall(p.r.now())
		p.saveMapping(m)
		p.report.UnchangedInSync++
		return
	}
	priceChanged := forced || m.PriceDelta(price)
	quantityChanged := forced || m.QuantityDelta(quantity)

	update := integration.ListingUpdate{
		RemoteListingID: m.RemoteID(),
		LocalProductID:  product.ID.String(),
		Title:           product.Fields.Title,
		Description:     product.Fields.Description,
		Images:          product.Fields.Images,
		Category:        product.Fields.Category,
		Price:           price,
		Quantity:        quantity,
	}
	var remoteID string
	err = p.call(func(ctx context.Context) error {
		var callErr error
		remoteID, callErr = p.client.UpsertListing(ctx, update)
		return callErr
	})
	if errors.Is(err, errPassExpired) {
		return
	}
	if err == nil {
		err = p.bindRemoteListing(m, remoteID)
	}

	now := p.r.now()
	m.RecordAttempt(now)
	if err != nil {
		m.MarkFailed(err.Error(), now, p.r.config.Backoff)
		p.report.PushFailed++
	} else {
		m.MarkSynced(price, quantity, now)
		p.requeueIfChanged(m)
		p.report.Pushed++
	}
	p.saveMapping(m)

	mappingID := m.ID
	if priceChanged {
		p.appendAttempt(&mappingID, integration.DirectionPushPrice, err)
	}
	if quantityChanged {
		p.appendAttempt(&mappingID, integration.DirectionPushInventory, err)
	}
}

// bindRemoteListing assigns the ID returned by the first push unless another
// mapping on the connection already holds it
func (p *pass) bindRemoteListing(m *integration.ProductChannelMapping, remoteID string) error {
	if !m.HasRemoteListing() && remoteID != "" {
		holder, err := p.r.mappings.FindByRemoteListingID(p.ctx, p.conn.ID, remoteID)
		switch {
		case err == nil && holder.ID != m.ID:
			p.logger.Error("Channel returned a remote listing bound to another product",
				zap.String("mapping_id", m.ID.String()),
				zap.String("holder_mapping_id", holder.ID.String()),
				zap.String("remote_listing_id", remoteID))
			return integration.ErrRemoteListingAssigned
		case err != nil && !errors.Is(err, integration.ErrMappingNotFound):
			return err
		}
	}
	return m.AssignRemoteListingID(remoteID)
}

// requeueIfChanged re-reads the product after a push. Values written by a
// caller that skipped the product lock leave the mapping unsynced.
func (p *pass) requeueIfChanged(m *integration.ProductChannelMapping) {
	current, err := p.r.products.FindByID(context.WithoutCancel(p.ctx), m.LocalProductID)
	if err != nil {
		if !errors.Is(err, listing.ErrProductNotFound) {
			p.logger.Warn("Failed to re-read pushed product",
				zap.String("mapping_id", m.ID.String()),
				zap.Error(err))
		}
		m.MarkUnsynced()
		return
	}
	if !current.IsActive() || m.HasDelta(current.Price(), current.Stock) {
		m.MarkUnsynced()
	}
}

// deactivate takes the remote listing of an archived product off sale
func (p *pass) deactivate(m *integration.ProductChannelMapping) {
	if !m.HasRemoteListing() || (m.Deactivated && m.SyncState != integration.SyncStateDrifted) {
		m.MarkDeactivated(p.r.now())
		p.saveMapping(m)
		return
	}

	remoteID := m.RemoteID()
	err := p.call(func(ctx context.Context) error {
		return p.client.DeactivateListing(ctx, remoteID)
	})
	if errors.Is(err, errPassExpired) {
		return
	}
	if errors.Is(err, integration.ErrRemoteListingNotFound) {
		err = nil
	}

	now := p.r.now()
	m.RecordAttempt(now)
	if err != nil {
		m.MarkFailed(err.Error(), now, p.r.config.Backoff)
		p.report.PushFailed++
	} else {
		m.MarkDeactivated(now)
		p.report.Deactivated++
	}
	p.saveMapping(m)
	mappingID := m.ID
	p.appendAttempt(&mappingID, integration.DirectionDeactivate, err)
}

// pull stores orders created since the watermark. Stock is applied on the next pass.
func (p *pass) pull() {
	since := p.conn.OrderWatermark(p.r.config.OrderLookback, p.r.now())

	var fetched []integration.RemoteOrderData
	err := p.call(func(ctx context.Context) error {
		var callErr error
		fetched, callErr = p.client.FetchOrders(ctx, since)
		return callErr
	})
	if errors.Is(err, errPassExpired) {
		return
	}
	p.appendAttempt(nil, integration.DirectionPullOrders, err)
	if err != nil {
		return
	}

	watermark := since
	for _, data := range fetched {
		if p.ctx.Err() != nil {
			break
		}
		order, err := p.resolve(data)
		if err != nil {
			p.logger.Error("Failed to resolve remote order",
				zap.String("remote_order_id", data.RemoteOrderID),
				zap.Error(err))
			break
		}
		inserted, err := p.r.orders.CreateIfAbsent(p.ctx, order)
		if err != nil {
			p.logger.Error("Failed to store remote order",
				zap.String("remote_order_id", data.RemoteOrderID),
				zap.Error(err))
			break
		}
		if data.CreatedAt.After(watermark) {
			watermark = data.CreatedAt
		}
		if !inserted {
			continue
		}
		p.report.OrdersPulled++
		p.r.metrics.RecordOrder(p.ctx, string(order.State))
		if order.State == integration.RemoteOrderError {
			p.report.OrdersUnresolved++
			p.logger.Warn("Remote order has no mapping",
				zap.String("remote_order_id", order.RemoteOrderID),
				zap.String("remote_listing_id", order.RemoteListingID))
		}
	}
	p.conn.MarkOrdersSynced(watermark)
}

func (p *pass) resolve(data integration.RemoteOrderData) (*integration.RemoteOrder, error) {
	now := p.r.now()
	if data.RemoteListingID == "" {
		return integration.NewUnresolvedRemoteOrder(p.conn, data, now), nil
	}
	mapping, err := p.r.mappings.FindByRemoteListingID(p.ctx, p.conn.ID, data.RemoteListingID)
	if errors.Is(err, integration.ErrMappingNotFound) {
		return integration.NewUnresolvedRemoteOrder(p.conn, data, now), nil
	}
	if err != nil {
		return nil, err
	}
	return integration.NewResolvedRemoteOrder(p.conn, data, mapping, now), nil
}

// detectDrift compares remote listings with the last synced values
func (p *pass) detectDrift() {
	mappings, err := p.r.mappings.FindWithRemoteListing(p.ctx, p.conn.ID)
	if err != nil {
		p.logger.Error("Failed to load mappings for drift detection", zap.Error(err))
		return
	}
	for i := range mappings {
		if p.halted() {
			return
		}
		m := &mappings[i]
		if m.SyncState != integration.SyncStateInSync {
			continue
		}

		remoteID := m.RemoteID()
		var state *integration.RemoteListingState
		err := p.call(func(ctx context.Context) error {
			var callErr error
			state, callErr = p.client.GetListing(ctx, remoteID)
			return callErr
		})
		if errors.Is(err, errPassExpired) {
			return
		}
		p.report.DriftChecked++

		mappingID := m.ID
		drifted := false
		switch {
		case errors.Is(err, integration.ErrRemoteListingNotFound):
			drifted = !m.Deactivated
			p.appendAttempt(&mappingID, integration.DirectionDriftCheck, nil)
		case err != nil:
			p.appendAttempt(&mappingID, integration.DirectionDriftCheck, err)
			continue
		default:
			drifted = m.DetectDrift(*state)
			p.appendAttempt(&mappingID, integration.DirectionDriftCheck, nil)
		}
		if drifted {
			m.MarkDrifted(p.r.now())
			p.saveMapping(m)
			p.report.Drifted++
			p.logger.Info("Remote listing drifted",
				zap.String("mapping_id", m.ID.String()),
				zap.String("remote_listing_id", remoteID))
		}
	}
	if !p.halted() {
		p.conn.MarkDriftChecked(p.r.now())
	}
}
