package handler

import (
	"context"

	integrationapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultHistoryLimit = 50

// SyncStatusReader answers synchronization status queries and manual pass requests
type SyncStatusReader interface {
	ConnectionStatus(ctx context.Context, connectionID uuid.UUID) (*integrationapp.ConnectionSyncStatus, error)
	Attempts(ctx context.Context, connectionID uuid.UUID, limit int) ([]integrationapp.AttemptView, error)
	Orders(ctx context.Context, connectionID uuid.UUID, state *integration.RemoteOrderState) ([]integrationapp.RemoteOrderResponse, error)
	RequestPass(ctx context.Context, connectionID uuid.UUID) error
}

// TaskHistory exposes the outcomes of background tasks
type TaskHistory interface {
	Recent(limit int) []scheduler.TaskOutcome
}

// SyncHandler handles synchronization status endpoints
type SyncHandler struct {
	BaseHandler
	registry connectionGetter
	status   SyncStatusReader
	tasks    TaskHistory
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(registry ChannelRegistry, status SyncStatusReader, tasks TaskHistory) *SyncHandler {
	return &SyncHandler{
		registry: registry,
		status:   status,
		tasks:    tasks,
	}
}

// GetStatus returns the per-mapping sync state of a connection
func (h *SyncHandler) GetStatus(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	status, err := h.status.ConnectionStatus(c.Request.Context(), conn.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// ListAttempts returns recent sync attempts of a connection, newest first
func (h *SyncHandler) ListAttempts(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	attempts, err := h.status.Attempts(c.Request.Context(), conn.ID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, attempts)
}

// ListOrders returns the orders pulled from the channel, optionally filtered by state
func (h *SyncHandler) ListOrders(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	var query dto.OrderListQuery
	if !h.bindQuery(c, &query) {
		return
	}
	var state *integration.RemoteOrderState
	if query.State != "" {
		s := integration.RemoteOrderState(query.State)
		state = &s
	}
	orders, err := h.status.Orders(c.Request.Context(), conn.ID, state)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orders)
}

// TriggerSync queues an immediate pass for the connection
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	if err := h.status.RequestPass(c.Request.Context(), conn.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"connection_id": conn.ID, "queued": true})
}

// ListTasks returns recent background task outcomes
func (h *SyncHandler) ListTasks(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	h.Success(c, h.tasks.Recent(limit))
}

func (h *SyncHandler) limit(c *gin.Context) (int, bool) {
	var query dto.LimitQuery
	if !h.bindQuery(c, &query) {
		return 0, false
	}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}
	return query.Limit, true
}
