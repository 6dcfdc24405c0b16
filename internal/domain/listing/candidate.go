package listing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Variant is one purchasable option of a listing (size, color, bundle)
type Variant struct {
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	Price      decimal.Decimal   `json:"price"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FieldSet is the structured content extracted from a source page
type FieldSet struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Price          decimal.Decimal   `json:"price"`
	Images         []string          `json:"images,omitempty"`
	ImageHashes    []string          `json:"image_hashes,omitempty"`
	Category       string            `json:"category"`
	Tags           []string          `json:"tags,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Variants       []Variant         `json:"variants,omitempty"`
}

// CandidateListing is the ephemeral output of the Extractor.
// It has no identity beyond its SourceURL until persisted as a ProductRecord.
type CandidateListing struct {
	SourceURL   string    `json:"source_url"`
	Fields      FieldSet  `json:"fields"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Warnings lists non-fatal gaps in the candidate that a reviewer should see
func (c *CandidateListing) Warnings() []string {
	var warnings []string
	if strings.TrimSpace(c.Fields.Description) == "" {
		warnings = append(warnings, "description is empty")
	}
	if len(c.Fields.Images) == 0 {
		warnings = append(warnings, "no images extracted")
	}
	if strings.TrimSpace(c.Fields.Category) == "" {
		warnings = append(warnings, "category is empty")
	}
	if c.Fields.Price.IsZero() {
		warnings = append(warnings, "price is zero")
	}
	return warnings
}

// Validate checks that the candidate carries the fields a ProductRecord requires.
// A candidate failing validation is treated as unparsable content.
func (c *CandidateListing) Validate() error {
	if strings.TrimSpace(c.Fields.Title) == "" {
		return NewExtractionError(ExtractionUnparsable, c.SourceURL, "extracted listing has no title", nil)
	}
	if c.Fields.Price.IsNegative() {
		return NewExtractionError(ExtractionUnparsable, c.SourceURL, "extracted listing has a negative price", nil)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return NewExtractionError(ExtractionUnparsable, c.SourceURL, "extraction confidence out of range", nil)
	}
	return nil
}
