package integration

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// ClientProvider builds a ChannelClient for a stored connection
type ClientProvider interface {
	ClientFor(conn *integration.ChannelConnection) (integration.ChannelClient, error)
}

// PassTrigger asks the scheduler for a pass on a connection as soon as a worker is free.
// A pass already queued or running for the connection absorbs the request.
type PassTrigger interface {
	TriggerPass(connectionID uuid.UUID) error
}

// HealthChecker probes a connection and stores the resulting status
type HealthChecker interface {
	HealthCheck(ctx context.Context, connectionID uuid.UUID) (*integration.ChannelConnection, error)
}
