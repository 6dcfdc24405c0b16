package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChannelRegistryService manages supplier connections to sales channels.
// It is the only owner of connection credentials.
type ChannelRegistryService struct {
	connections  integration.ConnectionRepository
	factory      integration.ClientFactory
	sealer       integration.CredentialSealer
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewChannelRegistryService creates a new ChannelRegistryService
func NewChannelRegistryService(
	connections integration.ConnectionRepository,
	factory integration.ClientFactory,
	sealer integration.CredentialSealer,
	probeTimeout time.Duration,
	logger *zap.Logger,
) *ChannelRegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &ChannelRegistryService{
		connections:  connections,
		factory:      factory,
		sealer:       sealer,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// Connect links a supplier to a channel and probes it once.
// A failed probe does not fail the call; the status records the result.
func (s *ChannelRegistryService) Connect(ctx context.Context, req ConnectRequest) (*ConnectionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "channel_registry", "connect")
	defer span.End()

	if !req.ChannelType.IsValid() || !s.factory.Supports(req.ChannelType) {
		return nil, integration.ErrInvalidChannelType
	}
	if len(req.Credentials) == 0 {
		return nil, integration.ErrCredentialsRequired
	}
	sealed, err := s.sealer.Seal(req.Credentials)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("seal credentials: %w", err)
	}

	conn, err := integration.NewChannelConnection(req.SupplierID, req.ChannelType, sealed, req.AutoPublish)
	if err != nil {
		return nil, err
	}
	if err := s.connections.Create(ctx, conn); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Channel connected",
		zap.String("connection_id", conn.ID.String()),
		zap.String("supplier_id", conn.SupplierID.String()),
		zap.String("channel_type", conn.ChannelType.String()))

	s.probe(ctx, conn, req.Credentials)
	if err := s.connections.SaveSyncState(ctx, conn); err != nil {
		s.logger.Warn("Failed to store initial health check",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
	}

	resp := ToConnectionResponse(conn)
	return &resp, nil
}

// Disconnect soft-deletes a connection. Mappings keep referencing it by ID.
func (s *ChannelRegistryService) Disconnect(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if err := conn.Unlink(time.Now()); err != nil {
		return err
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return err
	}
	s.logger.Info("Channel disconnected", zap.String("connection_id", connectionID.String()))
	return nil
}

// HealthCheck probes a connection and stores the resulting status
func (s *ChannelRegistryService) HealthCheck(ctx context.Context, connectionID uuid.UUID) (*integration.ChannelConnection, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "channel_registry", "health_check")
	defer span.End()

	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.IsUnlinked() {
		return nil, integration.ErrConnectionUnlinked
	}

	creds, err := s.sealer.Open(conn.SealedCredentials)
	if err != nil {
		conn.MarkAuthFailed("stored credentials cannot be decrypted", time.Now())
	} else {
		s.probe(ctx, conn, creds)
	}
	if err := s.connections.SaveSyncState(ctx, conn); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return conn, nil
}

// UpdateCredentials replaces the credentials of a connection and probes it
func (s *ChannelRegistryService) UpdateCredentials(ctx context.Context, connectionID uuid.UUID, creds integration.Credentials) (*ConnectionResponse, error) {
	if len(creds) == 0 {
		return nil, integration.ErrCredentialsRequired
	}
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(creds)
	if err != nil {
		return nil, fmt.Errorf("seal credentials: %w", err)
	}
	if err := conn.ReplaceCredentials(sealed); err != nil {
		return nil, err
	}
	s.probe(ctx, conn, creds)
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	resp := ToConnectionResponse(conn)
	return &resp, nil
}

// Get returns one connection
func (s *ChannelRegistryService) Get(ctx context.Context, connectionID uuid.UUID) (*ConnectionResponse, error) {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	resp := ToConnectionResponse(conn)
	return &resp, nil
}

// ListConnections returns the linked connections of a supplier
func (s *ChannelRegistryService) ListConnections(ctx context.Context, supplierID uuid.UUID) ([]ConnectionResponse, error) {
	conns, err := s.connections.FindBySupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	out := make([]ConnectionResponse, len(conns))
	for i := range conns {
		out[i] = ToConnectionResponse(&conns[i])
	}
	return out, nil
}

// ClientFor implements ClientProvider
func (s *ChannelRegistryService) ClientFor(conn *integration.ChannelConnection) (integration.ChannelClient, error) {
	creds, err := s.sealer.Open(conn.SealedCredentials)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	return s.factory.ClientFor(conn, creds)
}

// probe classifies the result as connected, error (auth) or disconnected (network)
func (s *ChannelRegistryService) probe(ctx context.Context, conn *integration.ChannelConnection, creds integration.Credentials) {
	now := time.Now()
	client, err := s.factory.ClientFor(conn, creds)
	if err != nil {
		conn.MarkAuthFailed(err.Error(), now)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	err = client.Probe(probeCtx)

	switch {
	case err == nil:
		conn.MarkHealthy(now)
	case errors.Is(err, integration.ErrChannelAuthFailed):
		conn.MarkAuthFailed(err.Error(), now)
	case integration.ClassifyFailure(err) == integration.FailureConnectivity:
		conn.MarkUnreachable(err.Error(), now)
	default:
		conn.MarkAuthFailed(err.Error(), now)
	}

	s.logger.Info("Channel health check",
		zap.String("connection_id", conn.ID.String()),
		zap.String("status", string(conn.Status)),
		zap.String("error", conn.LastErrorMessage))
}

var _ ClientProvider = (*ChannelRegistryService)(nil)
var _ HealthChecker = (*ChannelRegistryService)(nil)
