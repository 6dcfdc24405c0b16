package listing

import (
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngestRequest is the input of IngestionService.Ingest
type IngestRequest struct {
	SupplierID uuid.UUID
	SourceURL  string
}

// IngestResult is returned for both new and already-known source URLs
type IngestResult struct {
	Status           listing.Status        `json:"status"`
	ProductID        uuid.UUID             `json:"product_id"`
	SimilarityScores listing.RankedMatches `json:"similarity_scores"`
	Warnings         []string              `json:"warnings"`
	// Existing is true when a record already held the source URL
	Existing bool `json:"existing"`
}

// ProductRecordResponse is the API view of a product record
type ProductRecordResponse struct {
	ID               uuid.UUID             `json:"id"`
	SupplierID       uuid.UUID             `json:"supplier_id"`
	SourceURL        string                `json:"source_url"`
	Fields           listing.FieldSet      `json:"fields"`
	Confidence       float64               `json:"confidence"`
	SimilarityScores listing.RankedMatches `json:"similarity_scores"`
	Status           listing.Status        `json:"status"`
	ReviewNotes      string                `json:"review_notes,omitempty"`
	ReviewedAt       *time.Time            `json:"reviewed_at,omitempty"`
	ReviewedBy       string                `json:"reviewed_by,omitempty"`
	Price            decimal.Decimal       `json:"price"`
	Stock            int                   `json:"stock"`
	Warnings         []string              `json:"warnings,omitempty"`
	Version          int                   `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Automation       []AutomationResponse  `json:"automation,omitempty"`
}

// OwnedBy reports whether the record belongs to the supplier
func (r *ProductRecordResponse) OwnedBy(supplierID uuid.UUID) bool {
	return r.SupplierID == supplierID
}

// AutomationResponse is the API view of an automation record
type AutomationResponse struct {
	ID              uuid.UUID                `json:"id"`
	Status          listing.AutomationStatus `json:"status"`
	ExternalOrderID string                   `json:"external_order_id,omitempty"`
	ErrorMessage    string                   `json:"error_message,omitempty"`
	AttemptedAt     time.Time                `json:"attempted_at"`
	CompletedAt     *time.Time               `json:"completed_at,omitempty"`
}

// ToProductRecordResponse converts a domain record to its response
func ToProductRecordResponse(p *listing.ProductRecord) ProductRecordResponse {
	return ProductRecordResponse{
		ID:               p.ID,
		SupplierID:       p.SupplierID,
		SourceURL:        p.SourceURL,
		Fields:           p.Fields,
		Confidence:       p.Confidence,
		SimilarityScores: p.SimilarityScores,
		Status:           p.Status,
		ReviewNotes:      p.ReviewNotes,
		ReviewedAt:       p.ReviewedAt,
		ReviewedBy:       p.ReviewedBy,
		Price:            p.Price(),
		Stock:            p.Stock,
		Warnings:         p.Warnings,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ToAutomationResponses converts automation records to responses
func ToAutomationResponses(records []listing.AutomationRecord) []AutomationResponse {
	out := make([]AutomationResponse, len(records))
	for i, r := range records {
		out[i] = AutomationResponse{
			ID:              r.ID,
			Status:          r.Status,
			ExternalOrderID: r.ExternalOrderID,
			ErrorMessage:    r.ErrorMessage,
			AttemptedAt:     r.AttemptedAt,
			CompletedAt:     r.CompletedAt,
		}
	}
	return out
}

// InventoryUpdate changes the authoritative values of an active product
type InventoryUpdate struct {
	Price *decimal.Decimal
	Stock *int
}
