package listing

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestionConfig tunes the ingestion pipeline
type IngestionConfig struct {
	// CorpusLimit bounds how many existing records a candidate is compared against
	CorpusLimit int
	// LockTTL bounds how long a (supplier, url) key may stay locked
	LockTTL time.Duration
	// ExtractTimeout bounds a single extractor call
	ExtractTimeout time.Duration
}

// DefaultIngestionConfig returns default ingestion settings
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		CorpusLimit:    500,
		LockTTL:        2 * time.Minute,
		ExtractTimeout: 45 * time.Second,
	}
}

// IngestionService runs Extractor -> Scorer -> policy -> persistence for one source URL
type IngestionService struct {
	repo      listing.ProductRecordRepository
	extractor listing.Extractor
	scorer    listing.Scorer
	policy    *listing.ApprovalPolicy
	locker    shared.KeyLocker
	suppliers listing.SupplierDirectory
	events    shared.EventPublisher
	snapshots SnapshotArchiver
	metrics   *telemetry.SyncMetrics
	config    IngestionConfig
	logger    *zap.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(
	repo listing.ProductRecordRepository,
	extractor listing.Extractor,
	scorer listing.Scorer,
	policy *listing.ApprovalPolicy,
	locker shared.KeyLocker,
	suppliers listing.SupplierDirectory,
	events shared.EventPublisher,
	config IngestionConfig,
	logger *zap.Logger,
) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		repo:      repo,
		extractor: extractor,
		scorer:    scorer,
		policy:    policy,
		locker:    locker,
		suppliers: suppliers,
		events:    events,
		config:    config,
		logger:    logger,
	}
}

// SetSnapshotArchiver enables raw candidate archiving
func (s *IngestionService) SetSnapshotArchiver(a SnapshotArchiver) {
	s.snapshots = a
}

// SetMetrics sets the metrics recorder
func (s *IngestionService) SetMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// Ingest processes one source URL for a supplier.
// A repeated request for a URL whose record still holds it returns that record.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingestion", "ingest")
	defer span.End()

	sourceURL, err := validateIngestRequest(req)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, "supplier_id", req.SupplierID.String(), "source_url", sourceURL)

	ok, err := s.suppliers.IsActiveSupplier(ctx, req.SupplierID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !ok {
		return nil, listing.ErrSupplierInvalid
	}

	unlock, err := s.locker.Lock(ctx, ingestionLockKey(req.SupplierID, sourceURL), s.config.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.FindHolderOfSourceURL(ctx, req.SupplierID, sourceURL)
	switch {
	case err == nil:
		return s.existingResult(existing), nil
	case !errors.Is(err, listing.ErrProductNotFound):
		telemetry.RecordError(span, err)
		return nil, err
	}

	candidate, err := s.extract(ctx, sourceURL)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordIngestion(ctx, "extraction_failed")
		return nil, err
	}

	corpus, err := s.repo.FindCorpus(ctx, req.SupplierID, candidate.Fields.Category, s.config.CorpusLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	matches := s.scorer.Score(candidate.Fields, corpus)

	var record *listing.ProductRecord
	decision := s.policy.Classify(candidate, matches)
	if decision == listing.DecisionAutoApprove {
		record, err = listing.NewAutoApprovedProductRecord(req.SupplierID, candidate, matches)
	} else {
		record, err = listing.NewPendingProductRecord(req.SupplierID, candidate, matches)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// another process created the record first
			if holder, findErr := s.repo.FindHolderOfSourceURL(ctx, req.SupplierID, sourceURL); findErr == nil {
				return s.existingResult(holder), nil
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	warnings := nonNil(record.Warnings)
	if s.snapshots != nil {
		if _, err := s.snapshots.ArchiveCandidate(ctx, req.SupplierID, candidate); err != nil {
			s.logger.Warn("Failed to archive candidate snapshot",
				zap.String("product_id", record.ID.String()),
				zap.Error(err))
			warnings = append(warnings, "candidate snapshot was not archived")
		}
	}

	s.publish(ctx, record)
	s.metrics.RecordIngestion(ctx, string(decision))

	s.logger.Info("Candidate ingested",
		zap.String("product_id", record.ID.String()),
		zap.String("supplier_id", req.SupplierID.String()),
		zap.String("decision", string(decision)),
		zap.Float64("top_score", matches.TopScore()),
		zap.Float64("confidence", candidate.Confidence))

	return &IngestResult{
		Status:           record.Status,
		ProductID:        record.ID,
		SimilarityScores: record.SimilarityScores,
		Warnings:         warnings,
	}, nil
}

func (s *IngestionService) extract(ctx context.Context, sourceURL string) (*listing.CandidateListing, error) {
	if s.config.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ExtractTimeout)
		defer cancel()
	}

	candidate, err := s.extractor.Extract(ctx, sourceURL)
	if err != nil {
		extErr := listing.AsExtractionError(sourceURL, err)
		s.logger.Warn("Extraction failed",
			zap.String("source_url", sourceURL),
			zap.String("kind", string(extErr.Kind)),
			zap.Error(err))
		return nil, extErr
	}
	if candidate == nil {
		return nil, listing.NewExtractionError(listing.ExtractionUnparsable, sourceURL, "extractor returned no listing", nil)
	}
	candidate.SourceURL = sourceURL
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	return candidate, nil
}

// publish hands domain events to the bus. Failures are logged; the record is already persisted.
func (s *IngestionService) publish(ctx context.Context, record *listing.ProductRecord) {
	events := record.GetDomainEvents()
	record.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish product events",
			zap.String("product_id", record.ID.String()),
			zap.Error(err))
	}
}

func validateIngestRequest(req IngestRequest) (string, error) {
	if req.SupplierID == uuid.Nil {
		return "", listing.ErrMissingSupplier
	}
	raw := strings.TrimSpace(req.SourceURL)
	if raw == "" {
		return "", listing.ErrMissingSourceURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", listing.ErrInvalidSourceURL
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

func ingestionLockKey(supplierID uuid.UUID, sourceURL string) string {
	return "ingest:" + supplierID.String() + ":" + sourceURL
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func (s *IngestionService) existingResult(existing *listing.ProductRecord) *IngestResult {
	s.logger.Info("Source URL already ingested",
		zap.String("product_id", existing.ID.String()),
		zap.String("status", existing.Status.String()))
	return &IngestResult{
		Status:           existing.Status,
		ProductID:        existing.ID,
		SimilarityScores: existing.SimilarityScores,
		Warnings:         nonNil(existing.Warnings),
		Existing:         true,
	}
}
