package listing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, sourceURL string) (*listing.CandidateListing, error) {
	args := m.Called(ctx, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.CandidateListing), args.Error(1)
}

type MockSupplierDirectory struct {
	mock.Mock
}

func (m *MockSupplierDirectory) IsActiveSupplier(ctx context.Context, supplierID uuid.UUID) (bool, error) {
	args := m.Called(ctx, supplierID)
	return args.Bool(0), args.Error(1)
}

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(candidate listing.FieldSet, corpus []listing.CorpusEntry) listing.RankedMatches {
	args := m.Called(candidate, corpus)
	return args.Get(0).(listing.RankedMatches)
}

type MockOrderAutomation struct {
	mock.Mock
}

func (m *MockOrderAutomation) Automate(ctx context.Context, product *listing.ProductRecord, orderCtx listing.OrderContext) (*listing.AutomationResult, error) {
	args := m.Called(ctx, product, orderCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.AutomationResult), args.Error(1)
}

type MockSyncEnqueuer struct {
	mock.Mock
}

func (m *MockSyncEnqueuer) EnqueueProduct(ctx context.Context, supplierID, productID uuid.UUID) error {
	args := m.Called(ctx, supplierID, productID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) ProductChanged(ctx context.Context, productID uuid.UUID) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeProductRepo is an in-memory ProductRecordRepository with version checks
type fakeProductRepo struct {
	mu          sync.Mutex
	records     map[uuid.UUID]listing.ProductRecord
	transitions map[uuid.UUID][]listing.TransitionRecord
	creates     int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		records:     make(map[uuid.UUID]listing.ProductRecord),
		transitions: make(map[uuid.UUID][]listing.TransitionRecord),
	}
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*listing.ProductRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, listing.ErrProductNotFound
	}
	return &rec, nil
}

func (r *fakeProductRepo) FindHolderOfSourceURL(_ context.Context, supplierID uuid.UUID, sourceURL string) (*listing.ProductRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *listing.ProductRecord
	for _, rec := range r.records {
		rec := rec
		if rec.SupplierID != supplierID || rec.SourceURL != sourceURL || !rec.Status.HoldsSourceURL() {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = &rec
		}
	}
	if newest == nil {
		return nil, listing.ErrProductNotFound
	}
	return newest, nil
}

func (r *fakeProductRepo) FindCorpus(_ context.Context, supplierID uuid.UUID, category string, limit int) ([]listing.CorpusEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []listing.CorpusEntry
	for _, rec := range r.records {
		if rec.SupplierID == supplierID && rec.Fields.Category == category && rec.Status != listing.StatusRejected {
			out = append(out, listing.CorpusEntry{ID: rec.ID, Fields: rec.Fields})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeProductRepo) List(_ context.Context, filter listing.ProductRecordFilter) ([]listing.ProductRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []listing.ProductRecord
	for _, rec := range r.records {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) ListTransitions(_ context.Context, productID uuid.UUID) ([]listing.TransitionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]listing.TransitionRecord(nil), r.transitions[productID]...), nil
}

func (r *fakeProductRepo) Create(_ context.Context, record *listing.ProductRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.transitions[record.ID] = append(r.transitions[record.ID], record.PendingTransitions()...)
	record.ClearPendingTransitions()
	r.records[record.ID] = *record
	return nil
}

func (r *fakeProductRepo) Save(_ context.Context, record *listing.ProductRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[record.ID]
	if !ok {
		return listing.ErrProductNotFound
	}
	if current.Version != record.Version-1 {
		return listing.ErrVersionConflict
	}
	r.transitions[record.ID] = append(r.transitions[record.ID], record.PendingTransitions()...)
	record.ClearPendingTransitions()
	r.records[record.ID] = *record
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	delete(r.transitions, id)
	return nil
}

// fakeLocker is a process-local KeyLocker
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// inlineTasks runs submitted tasks synchronously and records their errors
type inlineTasks struct {
	kinds  []string
	errors []error
}

func (t *inlineTasks) Submit(ctx context.Context, kind, _ string, fn func(ctx context.Context) error) error {
	t.kinds = append(t.kinds, kind)
	t.errors = append(t.errors, fn(ctx))
	return nil
}

type memAutomationRepo struct {
	saved map[uuid.UUID]listing.AutomationRecord
	saves int
}

func newMemAutomationRepo() *memAutomationRepo {
	return &memAutomationRepo{saved: make(map[uuid.UUID]listing.AutomationRecord)}
}

func (r *memAutomationRepo) Save(_ context.Context, record *listing.AutomationRecord) error {
	r.saves++
	r.saved[record.ID] = *record
	return nil
}

func (r *memAutomationRepo) FindByProduct(_ context.Context, productID uuid.UUID) ([]listing.AutomationRecord, error) {
	var out []listing.AutomationRecord
	for _, rec := range r.saved {
		if rec.ProductID == productID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func testCandidate(url string) *listing.CandidateListing {
	return &listing.CandidateListing{
		SourceURL: url,
		Fields: listing.FieldSet{
			Title:       "Linen Throw Pillow Cover",
			Description: "Stonewashed linen, hidden zipper",
			Price:       decimal.NewFromFloat(24.50),
			Images:      []string{"https://img.example.com/p.jpg"},
			Category:    "home",
		},
		Confidence: 0.97,
	}
}

func seedActiveRecord(repo *fakeProductRepo, supplierID uuid.UUID) *listing.ProductRecord {
	rec, _ := listing.NewAutoApprovedProductRecord(supplierID, testCandidate("https://supplier.example.com/p/1"), nil)
	rec.ClearDomainEvents()
	rec.Stock = 10
	_ = repo.Create(context.Background(), rec)
	return rec
}

func seedPendingRecord(repo *fakeProductRepo, supplierID uuid.UUID) *listing.ProductRecord {
	rec, _ := listing.NewPendingProductRecord(supplierID, testCandidate("https://supplier.example.com/p/2"), nil)
	_ = repo.Create(context.Background(), rec)
	return rec
}
