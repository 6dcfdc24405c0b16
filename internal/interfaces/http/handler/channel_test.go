package handler

import (
	"net/http"
	"testing"
	"time"

	integrationapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type channelFixture struct {
	router   *gin.Engine
	registry *MockChannelRegistry
	mappings *MockMappingManager
	status   *MockSyncStatusReader
}

func setupChannelRouter(supplierID uuid.UUID, tasks TaskHistory) *channelFixture {
	f := &channelFixture{
		router:   gin.New(),
		registry: new(MockChannelRegistry),
		mappings: new(MockMappingManager),
		status:   new(MockSyncStatusReader),
	}
	ch := NewChannelHandler(f.registry, f.mappings)
	sh := NewSyncHandler(f.registry, f.status, tasks)

	g := f.router.Group("/api/v1", withSupplier(supplierID, "reviewer.jane"))
	g.POST("/connections", ch.Connect)
	g.GET("/connections", ch.ListConnections)
	g.GET("/connections/:id", ch.GetConnection)
	g.DELETE("/connections/:id", ch.Disconnect)
	g.POST("/connections/:id/health", ch.HealthCheck)
	g.PUT("/connections/:id/credentials", ch.UpdateCredentials)
	g.POST("/connections/:id/mappings", ch.CreateMapping)
	g.GET("/connections/:id/mappings", ch.ListMappings)
	g.GET("/connections/:id/status", sh.GetStatus)
	g.GET("/connections/:id/attempts", sh.ListAttempts)
	g.GET("/connections/:id/orders", sh.ListOrders)
	g.POST("/connections/:id/sync", sh.TriggerSync)
	g.GET("/tasks", sh.ListTasks)
	return f
}

func testConnection(supplierID uuid.UUID) *integrationapp.ConnectionResponse {
	return &integrationapp.ConnectionResponse{
		ID:          uuid.New(),
		SupplierID:  supplierID,
		ChannelType: "rest_marketplace",
		Status:      integration.ConnectionConnected,
	}
}

func TestChannelHandler_Connect(t *testing.T) {
	supplierID := uuid.New()

	t.Run("success", func(t *testing.T) {
		f := setupChannelRouter(supplierID, stubTasks{})
		conn := testConnection(supplierID)
		f.registry.On("Connect", mock.Anything, integrationapp.ConnectRequest{
			SupplierID:  supplierID,
			ChannelType: "rest_marketplace",
			Credentials: integration.Credentials{"api_key": "k", "api_secret": "s"},
			AutoPublish: true,
		}).Return(conn, nil)

		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections", dto.ConnectChannelRequest{
			ChannelType: "rest_marketplace",
			Credentials: map[string]string{"api_key": "k", "api_secret": "s"},
			AutoPublish: true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "api_secret")
		f.registry.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		f := setupChannelRouter(supplierID, stubTasks{})
		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections", dto.ConnectChannelRequest{
			ChannelType: "Not Valid",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Len(t, resp.Error.Details, 2)
	})

	t.Run("unsupported channel", func(t *testing.T) {
		f := setupChannelRouter(supplierID, stubTasks{})
		f.registry.On("Connect", mock.Anything, mock.Anything).Return(nil, integration.ErrInvalidChannelType)

		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections", dto.ConnectChannelRequest{
			ChannelType: "unknown_channel",
			Credentials: map[string]string{"api_key": "k"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, rec).Error.Code)
	})
}

func TestChannelHandler_Ownership(t *testing.T) {
	supplierID := uuid.New()
	f := setupChannelRouter(supplierID, stubTasks{})
	foreign := testConnection(uuid.New())
	f.registry.On("Get", mock.Anything, foreign.ID).Return(foreign, nil)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/connections/" + foreign.ID.String()},
		{http.MethodDelete, "/api/v1/connections/" + foreign.ID.String()},
		{http.MethodPost, "/api/v1/connections/" + foreign.ID.String() + "/health"},
		{http.MethodGet, "/api/v1/connections/" + foreign.ID.String() + "/status"},
		{http.MethodPost, "/api/v1/connections/" + foreign.ID.String() + "/sync"},
	}
	for _, p := range paths {
		rec := performRequest(f.router, p.method, p.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, p.method+" "+p.path)
	}
	f.registry.AssertNotCalled(t, "Disconnect", mock.Anything, mock.Anything)
	f.registry.AssertNotCalled(t, "HealthCheck", mock.Anything, mock.Anything)
	f.status.AssertNotCalled(t, "RequestPass", mock.Anything, mock.Anything)
}

func TestChannelHandler_Lifecycle(t *testing.T) {
	supplierID := uuid.New()
	f := setupChannelRouter(supplierID, stubTasks{})
	conn := testConnection(supplierID)
	f.registry.On("Get", mock.Anything, conn.ID).Return(conn, nil)

	t.Run("list", func(t *testing.T) {
		f.registry.On("ListConnections", mock.Anything, supplierID).Return([]integrationapp.ConnectionResponse{*conn}, nil)
		rec := performRequest(f.router, http.MethodGet, "/api/v1/connections", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []integrationapp.ConnectionResponse
		decodeData(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, conn.ID, got[0].ID)
	})

	t.Run("health check", func(t *testing.T) {
		checked := &integration.ChannelConnection{Status: integration.ConnectionError}
		checked.ID = conn.ID
		checked.SupplierID = supplierID
		f.registry.On("HealthCheck", mock.Anything, conn.ID).Return(checked, nil)

		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got integrationapp.ConnectionResponse
		decodeData(t, rec, &got)
		assert.Equal(t, integration.ConnectionError, got.Status)
	})

	t.Run("update credentials", func(t *testing.T) {
		f.registry.On("UpdateCredentials", mock.Anything, conn.ID, integration.Credentials{"api_key": "new"}).Return(conn, nil)
		rec := performRequest(f.router, http.MethodPut, "/api/v1/connections/"+conn.ID.String()+"/credentials", dto.UpdateCredentialsRequest{
			Credentials: map[string]string{"api_key": "new"},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disconnect", func(t *testing.T) {
		f.registry.On("Disconnect", mock.Anything, conn.ID).Return(nil)
		rec := performRequest(f.router, http.MethodDelete, "/api/v1/connections/"+conn.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestChannelHandler_Mappings(t *testing.T) {
	supplierID := uuid.New()
	f := setupChannelRouter(supplierID, stubTasks{})
	conn := testConnection(supplierID)
	productID := uuid.New()
	f.registry.On("Get", mock.Anything, conn.ID).Return(conn, nil)

	t.Run("create", func(t *testing.T) {
		f.mappings.On("CreateMapping", mock.Anything, productID, conn.ID).Return(&integrationapp.MappingResponse{
			ID:                  uuid.New(),
			LocalProductID:      productID,
			ChannelConnectionID: conn.ID,
			SyncState:           integration.SyncStateUnsynced,
		}, nil).Once()

		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/mappings", dto.CreateMappingRequest{
			ProductID: productID.String(),
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("product not active", func(t *testing.T) {
		f.mappings.On("CreateMapping", mock.Anything, productID, conn.ID).Return(nil, integration.ErrProductNotActive).Once()
		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/mappings", dto.CreateMappingRequest{
			ProductID: productID.String(),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad product id", func(t *testing.T) {
		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/mappings", dto.CreateMappingRequest{
			ProductID: "nope",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		f.mappings.On("ListMappings", mock.Anything, conn.ID).Return([]integrationapp.MappingResponse{}, nil)
		rec := performRequest(f.router, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/mappings", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSyncHandler(t *testing.T) {
	supplierID := uuid.New()
	tasks := stubTasks{
		{ID: uuid.New(), Kind: "activation", Status: scheduler.TaskStatusSucceeded},
		{ID: uuid.New(), Kind: "deactivation", Status: scheduler.TaskStatusFailed, Error: "channel unavailable"},
	}
	f := setupChannelRouter(supplierID, tasks)
	conn := testConnection(supplierID)
	f.registry.On("Get", mock.Anything, conn.ID).Return(conn, nil)

	t.Run("status", func(t *testing.T) {
		f.status.On("ConnectionStatus", mock.Anything, conn.ID).Return(&integrationapp.ConnectionSyncStatus{
			Connection: *conn,
			Counts:     map[integration.SyncState]int{integration.SyncStateInSync: 3},
		}, nil)
		rec := performRequest(f.router, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/status", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("attempts default limit", func(t *testing.T) {
		f.status.On("Attempts", mock.Anything, conn.ID, defaultHistoryLimit).Return([]integrationapp.AttemptView{
			{Direction: integration.DirectionPushInventory, Outcome: integration.OutcomeSuccess, AttemptedAt: time.Now()},
		}, nil)
		rec := performRequest(f.router, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/attempts", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = performRequest(f.router, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/attempts?limit=9999", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("orders by state", func(t *testing.T) {
		state := integration.RemoteOrderError
		f.status.On("Orders", mock.Anything, conn.ID, &state).Return([]integrationapp.RemoteOrderResponse{}, nil)
		rec := performRequest(f.router, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/orders?state=error", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = performRequest(f.router, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/orders?state=lost", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("trigger pass", func(t *testing.T) {
		f.status.On("RequestPass", mock.Anything, conn.ID).Return(nil).Once()
		rec := performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/sync", nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		f.status.On("RequestPass", mock.Anything, conn.ID).Return(scheduler.ErrJobQueueFull).Once()
		rec = performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/sync", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		f.status.On("RequestPass", mock.Anything, conn.ID).Return(integration.ErrConnectionUnlinked).Once()
		rec = performRequest(f.router, http.MethodPost, "/api/v1/connections/"+conn.ID.String()+"/sync", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("tasks", func(t *testing.T) {
		rec := performRequest(f.router, http.MethodGet, "/api/v1/tasks?limit=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got []scheduler.TaskOutcome
		decodeData(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, "activation", got[0].Kind)
	})
}
