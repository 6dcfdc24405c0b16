package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderContext carries what the supplier network needs besides the product itself
type OrderContext struct {
	SupplierID  uuid.UUID
	Reference   string
	Quantity    int
	RequestedAt time.Time
}

// AutomationResult is returned by a successful automation call
type AutomationResult struct {
	ExternalOrderID string
	Status          string
	Message         string
}

// OrderAutomation places a fulfillment order upstream for an activated product.
// It is invoked once per activation; any retry policy belongs to the implementation.
type OrderAutomation interface {
	Automate(ctx context.Context, product *ProductRecord, orderCtx OrderContext) (*AutomationResult, error)
}

// AutomationStatus is the state of one automation attempt
type AutomationStatus string

const (
	AutomationPending   AutomationStatus = "pending"
	AutomationSucceeded AutomationStatus = "succeeded"
	AutomationFailed    AutomationStatus = "failed"
)

// AutomationRecord stores the outcome of an automation call next to the product.
// It never influences the product's Status.
type AutomationRecord struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	SupplierID      uuid.UUID
	Status          AutomationStatus
	ExternalOrderID string
	ErrorMessage    string
	AttemptedAt     time.Time
	CompletedAt     *time.Time
}

// NewAutomationRecord creates a pending record for a product activation
func NewAutomationRecord(product *ProductRecord) *AutomationRecord {
	return &AutomationRecord{
		ID:          uuid.New(),
		ProductID:   product.ID,
		SupplierID:  product.SupplierID,
		Status:      AutomationPending,
		AttemptedAt: time.Now(),
	}
}

// Succeed records a successful automation
func (r *AutomationRecord) Succeed(result *AutomationResult) {
	now := time.Now()
	r.Status = AutomationSucceeded
	if result != nil {
		r.ExternalOrderID = result.ExternalOrderID
	}
	r.ErrorMessage = ""
	r.CompletedAt = &now
}

// Fail records a failed automation
func (r *AutomationRecord) Fail(err error) {
	now := time.Now()
	r.Status = AutomationFailed
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	r.CompletedAt = &now
}
