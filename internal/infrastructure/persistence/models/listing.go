package models

import (
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRecordModel is the persistence model for listing.ProductRecord.
// Title, Category and Price are copied out of Fields for filtering.
type ProductRecordModel struct {
	SupplierAggregateModel
	SourceURL        string                `gorm:"type:varchar(2048);not null;index"`
	Title            string                `gorm:"type:varchar(500);not null"`
	Category         string                `gorm:"type:varchar(200);index"`
	Price            decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Fields           listing.FieldSet      `gorm:"type:jsonb;serializer:json;not null"`
	Confidence       float64               `gorm:"type:double precision;not null"`
	SimilarityScores listing.RankedMatches `gorm:"type:jsonb;serializer:json"`
	Status           listing.Status        `gorm:"type:varchar(32);not null;index"`
	ReviewNotes      string                `gorm:"type:text"`
	ReviewedAt       *time.Time
	ReviewedBy       string   `gorm:"type:varchar(200)"`
	Stock            int      `gorm:"not null;default:0"`
	Warnings         []string `gorm:"type:jsonb;serializer:json"`
}

// TableName returns the table name for GORM
func (ProductRecordModel) TableName() string {
	return "product_records"
}

// ToDomain converts the model to a domain ProductRecord
func (m *ProductRecordModel) ToDomain() *listing.ProductRecord {
	scores := m.SimilarityScores
	if scores == nil {
		scores = listing.RankedMatches{}
	}
	return &listing.ProductRecord{
		SupplierAggregateRoot: m.ToSupplierAggregateRoot(),
		SourceURL:             m.SourceURL,
		Fields:                m.Fields,
		Confidence:            m.Confidence,
		SimilarityScores:      scores,
		Status:                m.Status,
		ReviewNotes:           m.ReviewNotes,
		ReviewedAt:            m.ReviewedAt,
		ReviewedBy:            m.ReviewedBy,
		Stock:                 m.Stock,
		Warnings:              m.Warnings,
	}
}

// FromDomain populates the model from a domain ProductRecord
func (m *ProductRecordModel) FromDomain(p *listing.ProductRecord) {
	m.FromDomainSupplierAggregateRoot(p.SupplierAggregateRoot)
	m.SourceURL = p.SourceURL
	m.Title = p.Fields.Title
	m.Category = p.Fields.Category
	m.Price = p.Fields.Price
	m.Fields = p.Fields
	m.Confidence = p.Confidence
	m.SimilarityScores = p.SimilarityScores
	m.Status = p.Status
	m.ReviewNotes = p.ReviewNotes
	m.ReviewedAt = p.ReviewedAt
	m.ReviewedBy = p.ReviewedBy
	m.Stock = p.Stock
	m.Warnings = p.Warnings
}

// ProductRecordModelFromDomain creates a model from a domain ProductRecord
func ProductRecordModelFromDomain(p *listing.ProductRecord) *ProductRecordModel {
	m := &ProductRecordModel{}
	m.FromDomain(p)
	return m
}

// ProductTransitionModel is one row of a product's lifecycle history
type ProductTransitionModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	ProductID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_product_transitions_product,priority:1"`
	FromStatus listing.Status `gorm:"type:varchar(32)"`
	ToStatus   listing.Status `gorm:"type:varchar(32);not null"`
	Actor      string         `gorm:"type:varchar(200);not null"`
	Reason     string         `gorm:"type:text"`
	At         time.Time      `gorm:"column:occurred_at;not null;index:idx_product_transitions_product,priority:2"`
}

// TableName returns the table name for GORM
func (ProductTransitionModel) TableName() string {
	return "product_transitions"
}

// ToDomain converts the model to a domain TransitionRecord
func (m *ProductTransitionModel) ToDomain() listing.TransitionRecord {
	return listing.TransitionRecord{
		ID:        m.ID,
		ProductID: m.ProductID,
		From:      m.FromStatus,
		To:        m.ToStatus,
		Actor:     m.Actor,
		Reason:    m.Reason,
		At:        m.At,
	}
}

// ProductTransitionModelFromDomain creates a model from a domain TransitionRecord
func ProductTransitionModelFromDomain(t listing.TransitionRecord) ProductTransitionModel {
	return ProductTransitionModel{
		ID:         t.ID,
		ProductID:  t.ProductID,
		FromStatus: t.From,
		ToStatus:   t.To,
		Actor:      t.Actor,
		Reason:     t.Reason,
		At:         t.At,
	}
}

// AutomationRecordModel stores one order automation outcome
type AutomationRecordModel struct {
	ID              uuid.UUID                `gorm:"type:uuid;primary_key"`
	ProductID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	SupplierID      uuid.UUID                `gorm:"type:uuid;not null"`
	Status          listing.AutomationStatus `gorm:"type:varchar(20);not null"`
	ExternalOrderID string                   `gorm:"type:varchar(200)"`
	ErrorMessage    string                   `gorm:"type:text"`
	AttemptedAt     time.Time                `gorm:"not null"`
	CompletedAt     *time.Time
}

// TableName returns the table name for GORM
func (AutomationRecordModel) TableName() string {
	return "automation_records"
}

// ToDomain converts the model to a domain AutomationRecord
func (m *AutomationRecordModel) ToDomain() listing.AutomationRecord {
	return listing.AutomationRecord{
		ID:              m.ID,
		ProductID:       m.ProductID,
		SupplierID:      m.SupplierID,
		Status:          m.Status,
		ExternalOrderID: m.ExternalOrderID,
		ErrorMessage:    m.ErrorMessage,
		AttemptedAt:     m.AttemptedAt,
		CompletedAt:     m.CompletedAt,
	}
}

// AutomationRecordModelFromDomain creates a model from a domain AutomationRecord
func AutomationRecordModelFromDomain(r *listing.AutomationRecord) *AutomationRecordModel {
	return &AutomationRecordModel{
		ID:              r.ID,
		ProductID:       r.ProductID,
		SupplierID:      r.SupplierID,
		Status:          r.Status,
		ExternalOrderID: r.ExternalOrderID,
		ErrorMessage:    r.ErrorMessage,
		AttemptedAt:     r.AttemptedAt,
		CompletedAt:     r.CompletedAt,
	}
}

// Supplier account statuses as written by the account subsystem
const (
	SupplierStatusActive    = "active"
	SupplierStatusSuspended = "suspended"
)

// SupplierModel is the read side of supplier accounts. Rows are owned by the
// account subsystem; this service only reads them.
type SupplierModel struct {
	BaseModel
	Name   string `gorm:"type:varchar(200);not null"`
	Status string `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}
