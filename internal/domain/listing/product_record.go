package listing

import (
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRecord is the durable catalog entity created from a candidate listing.
// Its Status is only changed through the transition methods below, each of which
// appends a TransitionRecord. Every mutating command bumps Version exactly once.
type ProductRecord struct {
	shared.SupplierAggregateRoot
	SourceURL        string
	Fields           FieldSet
	Confidence       float64
	SimilarityScores RankedMatches
	Status           Status
	ReviewNotes      string
	ReviewedAt       *time.Time
	ReviewedBy       string
	Stock            int
	Warnings         []string

	pendingTransitions []TransitionRecord
}

// NewPendingProductRecord creates a record that waits in the review queue
func NewPendingProductRecord(supplierID uuid.UUID, candidate *CandidateListing, matches RankedMatches) (*ProductRecord, error) {
	p, err := newProductRecord(supplierID, candidate, matches)
	if err != nil {
		return nil, err
	}
	p.setStatus(StatusPendingReview, SystemActor, "queued for review")
	return p, nil
}

// NewAutoApprovedProductRecord creates a record that skips review and goes live immediately
func NewAutoApprovedProductRecord(supplierID uuid.UUID, candidate *CandidateListing, matches RankedMatches) (*ProductRecord, error) {
	p, err := newProductRecord(supplierID, candidate, matches)
	if err != nil {
		return nil, err
	}
	p.setStatus(StatusApproved, SystemActor, "auto-approved")
	p.activate(SystemActor)
	return p, nil
}

func newProductRecord(supplierID uuid.UUID, candidate *CandidateListing, matches RankedMatches) (*ProductRecord, error) {
	if supplierID == uuid.Nil {
		return nil, ErrMissingSupplier
	}
	if candidate == nil || strings.TrimSpace(candidate.SourceURL) == "" {
		return nil, ErrMissingSourceURL
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if matches == nil {
		matches = RankedMatches{}
	}
	return &ProductRecord{
		SupplierAggregateRoot: shared.NewSupplierAggregateRoot(supplierID),
		SourceURL:             candidate.SourceURL,
		Fields:                candidate.Fields,
		Confidence:            candidate.Confidence,
		SimilarityScores:      matches,
		Warnings:              candidate.Warnings(),
	}, nil
}

// Approve moves a pending record to approved and then straight to active
func (p *ProductRecord) Approve(actor, notes string) error {
	if err := p.guard(actor, StatusApproved); err != nil {
		return err
	}
	p.review(actor, notes)
	p.setStatus(StatusApproved, actor, notes)
	p.activate(actor)
	p.IncrementVersion()
	return nil
}

// Reject moves a pending record to rejected. Notes are mandatory.
func (p *ProductRecord) Reject(actor, notes string) error {
	if strings.TrimSpace(notes) == "" {
		return ErrRejectNotesRequired
	}
	if err := p.guard(actor, StatusRejected); err != nil {
		return err
	}
	p.review(actor, notes)
	p.setStatus(StatusRejected, actor, notes)
	p.IncrementVersion()
	p.AddDomainEvent(NewProductRejectedEvent(p, notes))
	return nil
}

// Restore returns a rejected record to the review queue
func (p *ProductRecord) Restore(actor string) error {
	if err := p.guard(actor, StatusPendingReview); err != nil {
		return err
	}
	p.setStatus(StatusPendingReview, actor, "restored")
	p.IncrementVersion()
	return nil
}

// Archive takes an active record off sale. Its channel mappings are kept.
func (p *ProductRecord) Archive(actor, reason string) error {
	if err := p.guard(actor, StatusArchived); err != nil {
		return err
	}
	p.setStatus(StatusArchived, actor, reason)
	p.IncrementVersion()
	p.AddDomainEvent(NewProductArchivedEvent(p, reason))
	return nil
}

// EnsureDeletable reports whether the record may be permanently removed
func (p *ProductRecord) EnsureDeletable(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return ErrActorRequired
	}
	if !p.Status.CanDelete() {
		return ErrInvalidTransition
	}
	return nil
}

// UpdateInventory changes the authoritative price and/or stock of an active record
func (p *ProductRecord) UpdateInventory(price *decimal.Decimal, stock *int) error {
	if p.Status != StatusActive {
		return ErrNotActive
	}
	if price != nil && price.IsNegative() {
		return ErrInvalidPrice
	}
	if stock != nil && *stock < 0 {
		return ErrInvalidStock
	}
	if price != nil {
		p.Fields.Price = *price
	}
	if stock != nil {
		p.Stock = *stock
	}
	p.Touch()
	p.IncrementVersion()
	return nil
}

// DecrementStock removes sold units. Stock never goes below zero; the
// returned shortfall is the number of units sold beyond what was on hand.
func (p *ProductRecord) DecrementStock(quantity int) (shortfall int) {
	if quantity <= 0 {
		return 0
	}
	if quantity > p.Stock {
		shortfall = quantity - p.Stock
		p.Stock = 0
	} else {
		p.Stock -= quantity
	}
	p.Touch()
	p.IncrementVersion()
	return shortfall
}

// Price returns the authoritative selling price
func (p *ProductRecord) Price() decimal.Decimal {
	return p.Fields.Price
}

// IsActive reports whether the record is on sale
func (p *ProductRecord) IsActive() bool {
	return p.Status == StatusActive
}

// TopScore returns the highest similarity score, or 0 when nothing matched
func (p *ProductRecord) TopScore() float64 {
	return p.SimilarityScores.TopScore()
}

// PendingTransitions returns transitions not yet persisted
func (p *ProductRecord) PendingTransitions() []TransitionRecord {
	return p.pendingTransitions
}

// ClearPendingTransitions is called by the repository after persisting history
func (p *ProductRecord) ClearPendingTransitions() {
	p.pendingTransitions = nil
}

func (p *ProductRecord) guard(actor string, next Status) error {
	if strings.TrimSpace(actor) == "" {
		return ErrActorRequired
	}
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	return nil
}

func (p *ProductRecord) review(actor, notes string) {
	now := time.Now()
	p.ReviewNotes = notes
	p.ReviewedAt = &now
	p.ReviewedBy = actor
}

func (p *ProductRecord) activate(actor string) {
	p.setStatus(StatusActive, actor, "")
	p.AddDomainEvent(NewProductActivatedEvent(p))
}

func (p *ProductRecord) setStatus(next Status, actor, reason string) {
	now := time.Now()
	p.pendingTransitions = append(p.pendingTransitions,
		newTransitionRecord(p.ID, p.Status, next, actor, reason, now))
	p.Status = next
	p.UpdatedAt = now
}
