package handler

import (
	"context"

	integrationapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChannelRegistry manages channel connections
type ChannelRegistry interface {
	Connect(ctx context.Context, req integrationapp.ConnectRequest) (*integrationapp.ConnectionResponse, error)
	Disconnect(ctx context.Context, connectionID uuid.UUID) error
	HealthCheck(ctx context.Context, connectionID uuid.UUID) (*integration.ChannelConnection, error)
	UpdateCredentials(ctx context.Context, connectionID uuid.UUID, creds integration.Credentials) (*integrationapp.ConnectionResponse, error)
	Get(ctx context.Context, connectionID uuid.UUID) (*integrationapp.ConnectionResponse, error)
	ListConnections(ctx context.Context, supplierID uuid.UUID) ([]integrationapp.ConnectionResponse, error)
}

// MappingManager links products to connections
type MappingManager interface {
	CreateMapping(ctx context.Context, productID, connectionID uuid.UUID) (*integrationapp.MappingResponse, error)
	ListMappings(ctx context.Context, connectionID uuid.UUID) ([]integrationapp.MappingResponse, error)
}

// ChannelHandler handles channel connection and mapping endpoints
type ChannelHandler struct {
	BaseHandler
	registry ChannelRegistry
	mappings MappingManager
}

// NewChannelHandler creates a new ChannelHandler
func NewChannelHandler(registry ChannelRegistry, mappings MappingManager) *ChannelHandler {
	return &ChannelHandler{
		registry: registry,
		mappings: mappings,
	}
}

// Connect links the caller's supplier account to a sales channel
func (h *ChannelHandler) Connect(c *gin.Context) {
	supplierID, ok := h.supplierID(c)
	if !ok {
		return
	}
	var req dto.ConnectChannelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	conn, err := h.registry.Connect(c.Request.Context(), integrationapp.ConnectRequest{
		SupplierID:  supplierID,
		ChannelType: integration.ChannelType(req.ChannelType),
		Credentials: integration.Credentials(req.Credentials),
		AutoPublish: req.AutoPublish,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, conn)
}

// ListConnections lists the caller's connections
func (h *ChannelHandler) ListConnections(c *gin.Context) {
	supplierID, ok := h.supplierID(c)
	if !ok {
		return
	}
	conns, err := h.registry.ListConnections(c.Request.Context(), supplierID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, conns)
}

// GetConnection returns one connection
func (h *ChannelHandler) GetConnection(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	h.Success(c, conn)
}

// Disconnect unlinks a connection. Its mappings stop synchronizing.
func (h *ChannelHandler) Disconnect(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	if err := h.registry.Disconnect(c.Request.Context(), conn.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// HealthCheck probes the channel with the stored credentials
func (h *ChannelHandler) HealthCheck(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	checked, err := h.registry.HealthCheck(c.Request.Context(), conn.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToConnectionResponse(checked))
}

// UpdateCredentials replaces the credentials of a connection
func (h *ChannelHandler) UpdateCredentials(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	var req dto.UpdateCredentialsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := h.registry.UpdateCredentials(c.Request.Context(), conn.ID, integration.Credentials(req.Credentials))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, updated)
}

// CreateMapping links an active product to the connection
func (h *ChannelHandler) CreateMapping(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	var req dto.CreateMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	productID := uuid.MustParse(req.ProductID)

	mapping, err := h.mappings.CreateMapping(c.Request.Context(), productID, conn.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, mapping)
}

// ListMappings lists the mappings of the connection
func (h *ChannelHandler) ListMappings(c *gin.Context) {
	conn, ok := ownedConnection(c, &h.BaseHandler, h.registry)
	if !ok {
		return
	}
	mappings, err := h.mappings.ListMappings(c.Request.Context(), conn.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}

// connectionGetter is the part of ChannelRegistry used for ownership checks
type connectionGetter interface {
	Get(ctx context.Context, connectionID uuid.UUID) (*integrationapp.ConnectionResponse, error)
}

// ownedConnection loads the :id connection and answers 404 when it belongs to another supplier
func ownedConnection(c *gin.Context, h *BaseHandler, registry connectionGetter) (*integrationapp.ConnectionResponse, bool) {
	supplierID, ok := h.supplierID(c)
	if !ok {
		return nil, false
	}
	id, ok := h.pathID(c)
	if !ok {
		return nil, false
	}
	conn, err := registry.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if !conn.OwnedBy(supplierID) {
		h.NotFound(c, "Channel connection not found")
		return nil, false
	}
	return conn, true
}
