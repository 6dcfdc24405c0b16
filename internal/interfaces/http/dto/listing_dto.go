package dto

import (
	"github.com/shopspring/decimal"
)

// IngestListingRequest submits one supplier source URL for extraction
type IngestListingRequest struct {
	SourceURL string `json:"source_url" binding:"required,supplier_url"`
}

// ApproveRequest carries optional reviewer notes
type ApproveRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// RejectRequest requires reviewer notes
type RejectRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}

// ArchiveRequest carries an optional archive reason
type ArchiveRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// UpdateInventoryRequest edits the authoritative price or stock of an active product.
// At least one field must be set.
type UpdateInventoryRequest struct {
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock" binding:"omitempty,gte=0"`
}

// ProductListQuery filters the product listing
type ProductListQuery struct {
	ListRequest
	Status   string `form:"status" binding:"omitempty,oneof=pending_review approved rejected active archived"`
	Category string `form:"category"`
}
