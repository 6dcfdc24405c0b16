package integration

import (
	"context"
	"errors"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MappingService creates product-channel mappings and queues them for synchronization
type MappingService struct {
	mappings    integration.MappingRepository
	connections integration.ConnectionRepository
	products    listing.ProductRecordReader
	trigger     PassTrigger
	logger      *zap.Logger
}

// NewMappingService creates a new MappingService
func NewMappingService(
	mappings integration.MappingRepository,
	connections integration.ConnectionRepository,
	products listing.ProductRecordReader,
	trigger PassTrigger,
	logger *zap.Logger,
) *MappingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{
		mappings:    mappings,
		connections: connections,
		products:    products,
		trigger:     trigger,
		logger:      logger,
	}
}

// SetTrigger sets the pass trigger. The scheduler is built after this service.
func (s *MappingService) SetTrigger(trigger PassTrigger) {
	s.trigger = trigger
}

// CreateMapping links an active product to a connection of the same supplier.
// Calling it again for the same pair returns the existing mapping.
func (s *MappingService) CreateMapping(ctx context.Context, productID, connectionID uuid.UUID) (*MappingResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "mapping", "create")
	defer span.End()
	telemetry.SetAttributes(span, "product_id", productID.String(), "connection_id", connectionID.String())

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive() {
		return nil, integration.ErrProductNotActive
	}
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.IsUnlinked() {
		return nil, integration.ErrConnectionUnlinked
	}
	if conn.SupplierID != product.SupplierID {
		return nil, integration.ErrSupplierMismatch
	}

	mapping, created, err := s.createOrGet(ctx, product.SupplierID, productID, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if created {
		s.logger.Info("Mapping created",
			zap.String("mapping_id", mapping.ID.String()),
			zap.String("product_id", productID.String()),
			zap.String("connection_id", connectionID.String()))
		s.triggerPass(connectionID)
	}

	resp := ToMappingResponse(mapping)
	return &resp, nil
}

// ListMappings returns the mappings of a connection
func (s *MappingService) ListMappings(ctx context.Context, connectionID uuid.UUID) ([]MappingResponse, error) {
	if _, err := s.connections.FindByID(ctx, connectionID); err != nil {
		return nil, err
	}
	mappings, err := s.mappings.List(ctx, integration.MappingFilter{ConnectionID: &connectionID})
	if err != nil {
		return nil, err
	}
	out := make([]MappingResponse, len(mappings))
	for i := range mappings {
		out[i] = ToMappingResponse(&mappings[i])
	}
	return out, nil
}

// EnqueueProduct runs after activation. It creates mappings on the supplier's
// auto-publish connections and queues every mapping of the product.
func (s *MappingService) EnqueueProduct(ctx context.Context, supplierID, productID uuid.UUID) error {
	conns, err := s.connections.FindBySupplier(ctx, supplierID)
	if err != nil {
		return err
	}
	for i := range conns {
		conn := &conns[i]
		if !conn.AutoPublish || conn.IsUnlinked() {
			continue
		}
		if _, _, err := s.createOrGet(ctx, supplierID, productID, conn.ID); err != nil {
			s.logger.Error("Failed to create auto-publish mapping",
				zap.String("product_id", productID.String()),
				zap.String("connection_id", conn.ID.String()),
				zap.Error(err))
		}
	}
	return s.ProductChanged(ctx, productID)
}

// ProductChanged moves the product's mappings to unsynced and triggers passes
// on the affected connections.
func (s *MappingService) ProductChanged(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.mappings.MarkUnsyncedByProduct(ctx, productID); err != nil {
		return err
	}
	mappings, err := s.mappings.List(ctx, integration.MappingFilter{ProductID: &productID})
	if err != nil {
		return err
	}
	seen := make(map[uuid.UUID]struct{}, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.ChannelConnectionID]; ok {
			continue
		}
		seen[m.ChannelConnectionID] = struct{}{}
		s.triggerPass(m.ChannelConnectionID)
	}
	return nil
}

func (s *MappingService) createOrGet(ctx context.Context, supplierID, productID, connectionID uuid.UUID) (*integration.ProductChannelMapping, bool, error) {
	existing, err := s.mappings.FindByProductAndConnection(ctx, productID, connectionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, integration.ErrMappingNotFound) {
		return nil, false, err
	}

	mapping := integration.NewProductChannelMapping(supplierID, productID, connectionID)
	if err := s.mappings.Create(ctx, mapping); err != nil {
		if errors.Is(err, integration.ErrMappingExists) {
			existing, findErr := s.mappings.FindByProductAndConnection(ctx, productID, connectionID)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return mapping, true, nil
}

func (s *MappingService) triggerPass(connectionID uuid.UUID) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger.TriggerPass(connectionID); err != nil {
		s.logger.Debug("Pass trigger not accepted",
			zap.String("connection_id", connectionID.String()),
			zap.Error(err))
	}
}
