package listing

import (
	"context"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// productLockTTL bounds how long a single review action may hold a record
const productLockTTL = 30 * time.Second

// ReviewService applies reviewer actions and inventory edits to product records.
// Each action holds the record's key lock so a record has one writer at a time.
type ReviewService struct {
	repo        listing.ProductRecordRepository
	automations listing.AutomationRecordRepository
	locker      shared.KeyLocker
	events      shared.EventPublisher
	notifier    ChannelSyncNotifier
	logger      *zap.Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(
	repo listing.ProductRecordRepository,
	automations listing.AutomationRecordRepository,
	locker shared.KeyLocker,
	events shared.EventPublisher,
	notifier ChannelSyncNotifier,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		repo:        repo,
		automations: automations,
		locker:      locker,
		events:      events,
		notifier:    notifier,
		logger:      logger,
	}
}

// ProductLockKey is the lock key owning a product record
func ProductLockKey(id uuid.UUID) string {
	return "product:" + id.String()
}

// Get returns a record with its automation outcomes
func (s *ReviewService) Get(ctx context.Context, id uuid.UUID) (*ProductRecordResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductRecordResponse(record)
	if s.automations != nil {
		runs, err := s.automations.FindByProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		resp.Automation = ToAutomationResponses(runs)
	}
	return &resp, nil
}

// List returns a page of records
func (s *ReviewService) List(ctx context.Context, filter listing.ProductRecordFilter) (shared.Paginated[ProductRecordResponse], error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Paginated[ProductRecordResponse]{}, err
	}
	items := make([]ProductRecordResponse, len(records))
	for i := range records {
		items[i] = ToProductRecordResponse(&records[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}

// Transitions returns the lifecycle history of a record, oldest first
func (s *ReviewService) Transitions(ctx context.Context, id uuid.UUID) ([]listing.TransitionRecord, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, id)
}

// Approve moves a pending record to active
func (s *ReviewService) Approve(ctx context.Context, id uuid.UUID, actor, notes string) (*ProductRecordResponse, error) {
	return s.mutate(ctx, id, "approve", func(p *listing.ProductRecord) error {
		return p.Approve(actor, notes)
	})
}

// Reject moves a pending record to rejected
func (s *ReviewService) Reject(ctx context.Context, id uuid.UUID, actor, notes string) (*ProductRecordResponse, error) {
	return s.mutate(ctx, id, "reject", func(p *listing.ProductRecord) error {
		return p.Reject(actor, notes)
	})
}

// Restore returns a rejected record to pending review
func (s *ReviewService) Restore(ctx context.Context, id uuid.UUID, actor string) (*ProductRecordResponse, error) {
	return s.mutate(ctx, id, "restore", func(p *listing.ProductRecord) error {
		return p.Restore(actor)
	})
}

// Archive takes an active record off sale; its mappings are reconciled on the next pass
func (s *ReviewService) Archive(ctx context.Context, id uuid.UUID, actor, reason string) (*ProductRecordResponse, error) {
	resp, err := s.mutate(ctx, id, "archive", func(p *listing.ProductRecord) error {
		return p.Archive(actor, reason)
	})
	if err != nil {
		return nil, err
	}
	s.notifyChanged(ctx, id)
	return resp, nil
}

// UpdateInventory edits the price or stock of an active record
func (s *ReviewService) UpdateInventory(ctx context.Context, id uuid.UUID, update InventoryUpdate) (*ProductRecordResponse, error) {
	resp, err := s.mutate(ctx, id, "update_inventory", func(p *listing.ProductRecord) error {
		return p.UpdateInventory(update.Price, update.Stock)
	})
	if err != nil {
		return nil, err
	}
	s.notifyChanged(ctx, id)
	return resp, nil
}

// Delete permanently removes a rejected record
func (s *ReviewService) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "review", "delete")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, ProductLockKey(id), productLockTTL)
	if err != nil {
		return err
	}
	defer unlock()

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := record.EnsureDeletable(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("Product record deleted",
		zap.String("product_id", id.String()),
		zap.String("actor", actor))
	return nil
}

func (s *ReviewService) mutate(ctx context.Context, id uuid.UUID, action string, apply func(*listing.ProductRecord) error) (*ProductRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "review", action)
	defer span.End()
	telemetry.SetAttribute(span, "product_id", id.String())

	unlock, err := s.locker.Lock(ctx, ProductLockKey(id), productLockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := record.Status
	if err := apply(record); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := record.GetDomainEvents()
	record.ClearDomainEvents()
	if s.events != nil && len(events) > 0 {
		if err := s.events.Publish(ctx, events...); err != nil {
			s.logger.Error("Failed to publish product events",
				zap.String("product_id", id.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Product record updated",
		zap.String("product_id", id.String()),
		zap.String("action", action),
		zap.String("from", from.String()),
		zap.String("to", record.Status.String()))

	resp := ToProductRecordResponse(record)
	return &resp, nil
}

func (s *ReviewService) notifyChanged(ctx context.Context, id uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ProductChanged(ctx, id); err != nil {
		s.logger.Warn("Failed to mark channel mappings for reconciliation",
			zap.String("product_id", id.String()),
			zap.Error(err))
	}
}
