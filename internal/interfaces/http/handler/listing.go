package handler

import (
	"context"

	listingapp "github.com/catalogsync/backend/internal/application/listing"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Ingester turns a supplier source URL into a product record
type Ingester interface {
	Ingest(ctx context.Context, req listingapp.IngestRequest) (*listingapp.IngestResult, error)
}

// ProductReviewer reads and moves product records through review
type ProductReviewer interface {
	Get(ctx context.Context, id uuid.UUID) (*listingapp.ProductRecordResponse, error)
	List(ctx context.Context, filter listing.ProductRecordFilter) (shared.Paginated[listingapp.ProductRecordResponse], error)
	Transitions(ctx context.Context, id uuid.UUID) ([]listing.TransitionRecord, error)
	Approve(ctx context.Context, id uuid.UUID, actor, notes string) (*listingapp.ProductRecordResponse, error)
	Reject(ctx context.Context, id uuid.UUID, actor, notes string) (*listingapp.ProductRecordResponse, error)
	Restore(ctx context.Context, id uuid.UUID, actor string) (*listingapp.ProductRecordResponse, error)
	Archive(ctx context.Context, id uuid.UUID, actor, reason string) (*listingapp.ProductRecordResponse, error)
	UpdateInventory(ctx context.Context, id uuid.UUID, update listingapp.InventoryUpdate) (*listingapp.ProductRecordResponse, error)
	Delete(ctx context.Context, id uuid.UUID, actor string) error
}

// ListingHandler handles ingestion and review endpoints
type ListingHandler struct {
	BaseHandler
	ingester Ingester
	reviewer ProductReviewer
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(ingester Ingester, reviewer ProductReviewer) *ListingHandler {
	return &ListingHandler{
		ingester: ingester,
		reviewer: reviewer,
	}
}

// Ingest extracts a candidate listing from a supplier URL and records it.
// A URL already held by a record answers 200 with that record; a new record answers 201.
func (h *ListingHandler) Ingest(c *gin.Context) {
	supplierID, ok := h.supplierID(c)
	if !ok {
		return
	}
	var req dto.IngestListingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.ingester.Ingest(c.Request.Context(), listingapp.IngestRequest{
		SupplierID: supplierID,
		SourceURL:  req.SourceURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Existing {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// ListProducts lists the caller's product records
func (h *ListingHandler) ListProducts(c *gin.Context) {
	supplierID, ok := h.supplierID(c)
	if !ok {
		return
	}
	var query dto.ProductListQuery
	if !h.bindQuery(c, &query) {
		return
	}
	query.Normalize()

	filter := listing.ProductRecordFilter{
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
			Search:   query.Search,
		},
		SupplierID: &supplierID,
		Category:   query.Category,
	}
	if query.Status != "" {
		status := listing.Status(query.Status)
		filter.Status = &status
	}

	page, err := h.reviewer.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetProduct returns one product record
func (h *ListingHandler) GetProduct(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	h.Success(c, product)
}

// GetTransitions returns the status history of a product record
func (h *ListingHandler) GetTransitions(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	transitions, err := h.reviewer.Transitions(c.Request.Context(), product.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transitions)
}

// Approve moves a pending record to approved
func (h *ListingHandler) Approve(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	var req dto.ApproveRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.reviewer.Approve(c.Request.Context(), product.ID, middleware.GetActor(c), req.Notes))
}

// Reject moves a pending record to rejected. Notes are required.
func (h *ListingHandler) Reject(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.reviewer.Reject(c.Request.Context(), product.ID, middleware.GetActor(c), req.Notes))
}

// Restore sends a rejected record back to review
func (h *ListingHandler) Restore(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	h.respond(c)(h.reviewer.Restore(c.Request.Context(), product.ID, middleware.GetActor(c)))
}

// Archive retires a record and deactivates its remote listings
func (h *ListingHandler) Archive(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	var req dto.ArchiveRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.respond(c)(h.reviewer.Archive(c.Request.Context(), product.ID, middleware.GetActor(c), req.Reason))
}

// UpdateInventory edits the price or stock of an active product
func (h *ListingHandler) UpdateInventory(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	var req dto.UpdateInventoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Price == nil && req.Stock == nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "price", Message: "Either price or stock is required"}})
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "price", Message: "Value must be at least 0"}})
		return
	}
	h.respond(c)(h.reviewer.UpdateInventory(c.Request.Context(), product.ID, listingapp.InventoryUpdate{
		Price: req.Price,
		Stock: req.Stock,
	}))
}

// DeleteProduct removes a record that was never published
func (h *ListingHandler) DeleteProduct(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	if err := h.reviewer.Delete(c.Request.Context(), product.ID, middleware.GetActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ownedProduct loads the :id record and answers 404 when it belongs to another supplier
func (h *ListingHandler) ownedProduct(c *gin.Context) (*listingapp.ProductRecordResponse, bool) {
	supplierID, ok := h.supplierID(c)
	if !ok {
		return nil, false
	}
	id, ok := h.pathID(c)
	if !ok {
		return nil, false
	}
	product, err := h.reviewer.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if !product.OwnedBy(supplierID) {
		h.NotFound(c, "Product record not found")
		return nil, false
	}
	return product, true
}

func (h *ListingHandler) respond(c *gin.Context) func(*listingapp.ProductRecordResponse, error) {
	return func(product *listingapp.ProductRecordResponse, err error) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, product)
	}
}
