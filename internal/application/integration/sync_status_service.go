package integration

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultOrderListLimit = 100

// SyncStatusService answers read-only synchronization status queries
type SyncStatusService struct {
	connections integration.ConnectionRepository
	mappings    integration.MappingRepository
	attempts    integration.SyncAttemptRepository
	orders      integration.RemoteOrderRepository
	trigger     PassTrigger
	logger      *zap.Logger
}

// NewSyncStatusService creates a new SyncStatusService
func NewSyncStatusService(
	connections integration.ConnectionRepository,
	mappings integration.MappingRepository,
	attempts integration.SyncAttemptRepository,
	orders integration.RemoteOrderRepository,
	logger *zap.Logger,
) *SyncStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncStatusService{
		connections: connections,
		mappings:    mappings,
		attempts:    attempts,
		orders:      orders,
		logger:      logger,
	}
}

// SetTrigger sets the pass trigger used by RequestPass
func (s *SyncStatusService) SetTrigger(trigger PassTrigger) {
	s.trigger = trigger
}

// ConnectionStatus returns per-mapping sync state with the latest attempt of each mapping
func (s *SyncStatusService) ConnectionStatus(ctx context.Context, connectionID uuid.UUID) (*ConnectionSyncStatus, error) {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	mappings, err := s.mappings.List(ctx, integration.MappingFilter{ConnectionID: &connectionID})
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(mappings))
	for i := range mappings {
		ids[i] = mappings[i].ID
	}
	latest, err := s.attempts.LatestByMappings(ctx, ids)
	if err != nil {
		return nil, err
	}

	status := &ConnectionSyncStatus{
		Connection: ToConnectionResponse(conn),
		Counts:     make(map[integration.SyncState]int),
		Mappings:   make([]MappingStatus, 0, len(mappings)),
	}
	for i := range mappings {
		m := &mappings[i]
		status.Counts[m.SyncState]++
		row := MappingStatus{
			MappingID:           m.ID,
			LocalProductID:      m.LocalProductID,
			RemoteListingID:     m.RemoteListingID,
			SyncState:           m.SyncState,
			LastError:           m.LastError,
			ConsecutiveFailures: m.ConsecutiveFailures,
			NextAttemptAt:       m.NextAttemptAt,
		}
		if a, ok := latest[m.ID]; ok {
			row.LastAttempt = &AttemptView{
				Direction:   a.Direction,
				Outcome:     a.Outcome,
				ErrorDetail: a.ErrorDetail,
				AttemptedAt: a.AttemptedAt,
			}
		}
		status.Mappings = append(status.Mappings, row)
	}
	return status, nil
}

// Attempts returns the newest sync attempts of a connection
func (s *SyncStatusService) Attempts(ctx context.Context, connectionID uuid.UUID, limit int) ([]AttemptView, error) {
	if _, err := s.connections.FindByID(ctx, connectionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultOrderListLimit {
		limit = defaultOrderListLimit
	}
	attempts, err := s.attempts.ListByConnection(ctx, connectionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AttemptView, len(attempts))
	for i, a := range attempts {
		out[i] = AttemptView{
			Direction:   a.Direction,
			Outcome:     a.Outcome,
			ErrorDetail: a.ErrorDetail,
			AttemptedAt: a.AttemptedAt,
		}
	}
	return out, nil
}

// Orders lists pulled orders of a connection, optionally by state
func (s *SyncStatusService) Orders(ctx context.Context, connectionID uuid.UUID, state *integration.RemoteOrderState) ([]RemoteOrderResponse, error) {
	if state != nil && !state.IsValid() {
		return nil, integration.ErrInvalidOrderState
	}
	if _, err := s.connections.FindByID(ctx, connectionID); err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, connectionID, state, defaultOrderListLimit)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteOrderResponse, len(orders))
	for i := range orders {
		out[i] = ToRemoteOrderResponse(&orders[i])
	}
	return out, nil
}

// RequestPass asks the scheduler for an immediate pass on a connection
func (s *SyncStatusService) RequestPass(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn.IsUnlinked() {
		return integration.ErrConnectionUnlinked
	}
	if s.trigger == nil {
		return ErrConnectionNotSchedulable
	}
	return s.trigger.TriggerPass(connectionID)
}
