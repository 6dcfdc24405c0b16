package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Task kinds submitted on activation
const (
	TaskKindOrderAutomation = "order_automation"
	TaskKindSyncEnqueue     = "sync_enqueue"
)

// ActivationDispatcher reacts to ProductActivated by queueing order automation
// and synchronization. Neither task can change the product's status.
type ActivationDispatcher struct {
	tasks       TaskSubmitter
	products    listing.ProductRecordReader
	automation  listing.OrderAutomation
	automations listing.AutomationRecordRepository
	sync        SyncEnqueuer
	logger      *zap.Logger
}

// NewActivationDispatcher creates a new ActivationDispatcher
func NewActivationDispatcher(
	tasks TaskSubmitter,
	products listing.ProductRecordReader,
	automation listing.OrderAutomation,
	automations listing.AutomationRecordRepository,
	sync SyncEnqueuer,
	logger *zap.Logger,
) *ActivationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivationDispatcher{
		tasks:       tasks,
		products:    products,
		automation:  automation,
		automations: automations,
		sync:        sync,
		logger:      logger,
	}
}

// EventTypes implements shared.EventHandler
func (d *ActivationDispatcher) EventTypes() []string {
	return []string{listing.EventTypeProductActivated}
}

// Handle implements shared.EventHandler. Submission failures are logged and
// recorded by the task queue; they are never returned to the publisher.
func (d *ActivationDispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	activated, ok := event.(*listing.ProductActivatedEvent)
	if !ok {
		return nil
	}
	productID := activated.ProductID
	key := productID.String()

	if d.automation != nil {
		if err := d.tasks.Submit(ctx, TaskKindOrderAutomation, key, func(ctx context.Context) error {
			return d.runAutomation(ctx, activated)
		}); err != nil {
			d.logger.Error("Failed to queue order automation",
				zap.String("product_id", key),
				zap.Error(err))
		}
	}

	if d.sync != nil {
		if err := d.tasks.Submit(ctx, TaskKindSyncEnqueue, key, func(ctx context.Context) error {
			return d.sync.EnqueueProduct(ctx, activated.SupplierID(), productID)
		}); err != nil {
			d.logger.Error("Failed to queue sync enqueue",
				zap.String("product_id", key),
				zap.Error(err))
		}
	}
	return nil
}

// runAutomation calls the adapter exactly once and stores its outcome
func (d *ActivationDispatcher) runAutomation(ctx context.Context, event *listing.ProductActivatedEvent) error {
	product, err := d.products.FindByID(ctx, event.ProductID)
	if err != nil {
		return fmt.Errorf("load product for automation: %w", err)
	}

	record := listing.NewAutomationRecord(product)
	if err := d.automations.Save(ctx, record); err != nil {
		return fmt.Errorf("save pending automation record: %w", err)
	}

	result, callErr := d.automation.Automate(ctx, product, listing.OrderContext{
		SupplierID:  product.SupplierID,
		Reference:   event.EventID().String(),
		Quantity:    1,
		RequestedAt: time.Now(),
	})
	if callErr != nil {
		record.Fail(callErr)
	} else {
		record.Succeed(result)
	}

	if err := d.automations.Save(ctx, record); err != nil {
		d.logger.Error("Failed to save automation outcome",
			zap.String("product_id", product.ID.String()),
			zap.String("status", string(record.Status)),
			zap.Error(err))
		return err
	}
	return callErr
}
