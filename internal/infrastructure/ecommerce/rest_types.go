package ecommerce

import (
	"time"

	"github.com/shopspring/decimal"
)

// listingRequest is the body of a create or update listing call
type listingRequest struct {
	ExternalID  string          `json:"external_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// listingResponse is the remote view of one listing
type listingResponse struct {
	ID        string          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// orderResponse is one order line as reported by the channel
type orderResponse struct {
	ID        string          `json:"id"`
	ListingID string          `json:"listing_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// orderPage is one page of an order listing
type orderPage struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor"`
}

// errorResponse is the error envelope returned with non-2xx statuses
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const listingStatusActive = "active"
