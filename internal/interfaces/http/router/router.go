// Package router assembles the versioned API from domain route groups.
package router

import (
	"net/http"

	"github.com/catalogsync/backend/internal/interfaces/http/handler"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup registers all routes under /api/{version}
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one domain under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// Route describes a registered route, as returned by DomainGroup.Routes
type Route struct {
	Method string
	Path   string
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{
		name:   name,
		prefix: prefix,
	}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// Handle registers a route for any method
func (dg *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{
		method:   method,
		path:     path,
		handlers: handlers,
	})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, handlers...)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, handlers...)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, path, handlers...)
}

// PATCH registers a PATCH route
func (dg *DomainGroup) PATCH(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPatch, path, handlers...)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, path, handlers...)
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Routes lists the routes of the group and its subgroups with full paths relative to the API root
func (dg *DomainGroup) Routes() []Route {
	var out []Route
	for _, route := range dg.routes {
		out = append(out, Route{Method: route.method, Path: joinPath(dg.prefix, route.path)})
	}
	for _, subgroup := range dg.subgroups {
		for _, route := range subgroup.Routes() {
			out = append(out, Route{Method: route.Method, Path: joinPath(dg.prefix, route.Path)})
		}
	}
	return out
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

func joinPath(prefix, path string) string {
	switch {
	case path == "" || path == "/":
		return prefix
	case prefix == "" || prefix == "/":
		return path
	}
	return prefix + path
}

// Handlers are the API handlers mounted by Groups
type Handlers struct {
	Listing *handler.ListingHandler
	Channel *handler.ChannelHandler
	Sync    *handler.SyncHandler
	System  *handler.SystemHandler
}

// Groups returns the domain groups of the catalog sync API.
// Review actions, deletion and inventory edits require the reviewer or admin role.
func Groups(h Handlers) []*DomainGroup {
	reviewer := middleware.RequireRole(middleware.RoleReviewer, middleware.RoleAdmin)

	listings := NewDomainGroup("listings", "/listings")
	listings.POST("/ingest", h.Listing.Ingest)

	products := NewDomainGroup("products", "/products")
	products.GET("", h.Listing.ListProducts)
	products.GET("/:id", h.Listing.GetProduct)
	products.GET("/:id/transitions", h.Listing.GetTransitions)
	products.POST("/:id/approve", reviewer, h.Listing.Approve)
	products.POST("/:id/reject", reviewer, h.Listing.Reject)
	products.POST("/:id/restore", reviewer, h.Listing.Restore)
	products.POST("/:id/archive", reviewer, h.Listing.Archive)
	products.PATCH("/:id/inventory", reviewer, h.Listing.UpdateInventory)
	products.DELETE("/:id", reviewer, h.Listing.DeleteProduct)

	connections := NewDomainGroup("connections", "/connections")
	connections.POST("", h.Channel.Connect)
	connections.GET("", h.Channel.ListConnections)
	connections.GET("/:id", h.Channel.GetConnection)
	connections.DELETE("/:id", h.Channel.Disconnect)
	connections.POST("/:id/health", h.Channel.HealthCheck)
	connections.PUT("/:id/credentials", h.Channel.UpdateCredentials)
	connections.POST("/:id/mappings", h.Channel.CreateMapping)
	connections.GET("/:id/mappings", h.Channel.ListMappings)
	connections.GET("/:id/status", h.Sync.GetStatus)
	connections.GET("/:id/attempts", h.Sync.ListAttempts)
	connections.GET("/:id/orders", h.Sync.ListOrders)
	connections.POST("/:id/sync", h.Sync.TriggerSync)

	tasks := NewDomainGroup("tasks", "/tasks")
	tasks.GET("", middleware.RequireRole(middleware.RoleAdmin), h.Sync.ListTasks)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)

	return []*DomainGroup{listings, products, connections, tasks, system}
}

// Mount registers the probes at the engine root and the API groups under /api/{version}
func Mount(engine *gin.Engine, h Handlers, opts ...RouterOption) *Router {
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	r := NewRouter(engine, opts...)
	for _, g := range Groups(h) {
		r.Register(g)
	}
	r.Setup()
	return r
}
