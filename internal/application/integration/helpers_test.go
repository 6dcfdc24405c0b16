package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memConnections struct {
	mu    sync.Mutex
	conns map[uuid.UUID]integration.ChannelConnection
}

func newMemConnections() *memConnections {
	return &memConnections{conns: make(map[uuid.UUID]integration.ChannelConnection)}
}

func (r *memConnections) FindByID(_ context.Context, id uuid.UUID) (*integration.ChannelConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return nil, integration.ErrConnectionNotFound
	}
	return &c, nil
}

func (r *memConnections) FindBySupplier(_ context.Context, supplierID uuid.UUID) ([]integration.ChannelConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.ChannelConnection
	for _, c := range r.conns {
		if c.SupplierID == supplierID && !c.IsUnlinked() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConnections) FindLinked(_ context.Context) ([]integration.ChannelConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.ChannelConnection
	for _, c := range r.conns {
		if !c.IsUnlinked() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConnections) Create(_ context.Context, conn *integration.ChannelConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = *conn
	return nil
}

func (r *memConnections) Save(_ context.Context, conn *integration.ChannelConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = *conn
	return nil
}

func (r *memConnections) SaveSyncState(_ context.Context, conn *integration.ChannelConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.conns[conn.ID]
	if !ok {
		return integration.ErrConnectionNotFound
	}
	if current.IsUnlinked() {
		return nil
	}
	r.conns[conn.ID] = *conn
	return nil
}

func (r *memConnections) get(id uuid.UUID) integration.ChannelConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[id]
}

type memMappings struct {
	mu       sync.Mutex
	mappings map[uuid.UUID]integration.ProductChannelMapping
}

func newMemMappings() *memMappings {
	return &memMappings{mappings: make(map[uuid.UUID]integration.ProductChannelMapping)}
}

func (r *memMappings) FindByID(_ context.Context, id uuid.UUID) (*integration.ProductChannelMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[id]
	if !ok {
		return nil, integration.ErrMappingNotFound
	}
	return &m, nil
}

func (r *memMappings) FindByProductAndConnection(_ context.Context, productID, connectionID uuid.UUID) (*integration.ProductChannelMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.LocalProductID == productID && m.ChannelConnectionID == connectionID {
			return &m, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (r *memMappings) FindByRemoteListingID(_ context.Context, connectionID uuid.UUID, remoteListingID string) (*integration.ProductChannelMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.ChannelConnectionID == connectionID && m.RemoteID() == remoteListingID {
			return &m, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (r *memMappings) FindPushable(_ context.Context, connectionID uuid.UUID) ([]integration.ProductChannelMapping, error) {
	return r.filter(func(m integration.ProductChannelMapping) bool {
		return m.ChannelConnectionID == connectionID && m.SyncState.NeedsPush()
	}), nil
}

func (r *memMappings) FindWithRemoteListing(_ context.Context, connectionID uuid.UUID) ([]integration.ProductChannelMapping, error) {
	return r.filter(func(m integration.ProductChannelMapping) bool {
		return m.ChannelConnectionID == connectionID && m.HasRemoteListing()
	}), nil
}

func (r *memMappings) List(_ context.Context, f integration.MappingFilter) ([]integration.ProductChannelMapping, error) {
	return r.filter(func(m integration.ProductChannelMapping) bool {
		if f.ConnectionID != nil && m.ChannelConnectionID != *f.ConnectionID {
			return false
		}
		if f.ProductID != nil && m.LocalProductID != *f.ProductID {
			return false
		}
		return true
	}), nil
}

func (r *memMappings) Create(_ context.Context, mapping *integration.ProductChannelMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.LocalProductID == mapping.LocalProductID && m.ChannelConnectionID == mapping.ChannelConnectionID {
			return integration.ErrMappingExists
		}
	}
	r.mappings[mapping.ID] = *mapping
	return nil
}

func (r *memMappings) Save(_ context.Context, mapping *integration.ProductChannelMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings[mapping.ID] = *mapping
	return nil
}

func (r *memMappings) MarkUnsyncedByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.mappings {
		if m.LocalProductID != productID {
			continue
		}
		if m.SyncState == integration.SyncStateInSync {
			m.SyncState = integration.SyncStateUnsynced
			r.mappings[id] = m
			n++
		}
	}
	return n, nil
}

func (r *memMappings) filter(keep func(integration.ProductChannelMapping) bool) []integration.ProductChannelMapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.ProductChannelMapping
	for _, m := range r.mappings {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memMappings) get(id uuid.UUID) integration.ProductChannelMapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mappings[id]
}

type memAttempts struct {
	mu       sync.Mutex
	attempts []integration.SyncAttempt
}

func (r *memAttempts) Append(_ context.Context, a *integration.SyncAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *a)
	return nil
}

func (r *memAttempts) LatestByMappings(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]integration.SyncAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[uuid.UUID]integration.SyncAttempt)
	for _, a := range r.attempts {
		if a.MappingID != nil && want[*a.MappingID] {
			out[*a.MappingID] = a
		}
	}
	return out, nil
}

func (r *memAttempts) ListByConnection(_ context.Context, connectionID uuid.UUID, limit int) ([]integration.SyncAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.attempts[i].ConnectionID == connectionID {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

func (r *memAttempts) forConnection(connectionID uuid.UUID) []integration.SyncAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncAttempt
	for _, a := range r.attempts {
		if a.ConnectionID == connectionID {
			out = append(out, a)
		}
	}
	return out
}

type memOrders struct {
	mu     sync.Mutex
	orders []integration.RemoteOrder
}

func (r *memOrders) CreateIfAbsent(_ context.Context, o *integration.RemoteOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.ConnectionID == o.ConnectionID && existing.RemoteOrderID == o.RemoteOrderID {
			return false, nil
		}
	}
	r.orders = append(r.orders, *o)
	return true, nil
}

func (r *memOrders) FindResolved(_ context.Context, connectionID uuid.UUID) ([]integration.RemoteOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.RemoteOrder
	for _, o := range r.orders {
		if o.ConnectionID == connectionID && o.State == integration.RemoteOrderResolved {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrders) List(_ context.Context, connectionID uuid.UUID, state *integration.RemoteOrderState, limit int) ([]integration.RemoteOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.RemoteOrder
	for _, o := range r.orders {
		if o.ConnectionID != connectionID || (state != nil && o.State != *state) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOrders) Save(_ context.Context, o *integration.RemoteOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == o.ID {
			r.orders[i] = *o
			return nil
		}
	}
	return errors.New("order not found")
}

func (r *memOrders) all() []integration.RemoteOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]integration.RemoteOrder(nil), r.orders...)
}

type memProducts struct {
	mu      sync.Mutex
	records map[uuid.UUID]listing.ProductRecord
}

func newMemProducts() *memProducts {
	return &memProducts{records: make(map[uuid.UUID]listing.ProductRecord)}
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*listing.ProductRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, listing.ErrProductNotFound
	}
	return &rec, nil
}

func (r *memProducts) FindHolderOfSourceURL(context.Context, uuid.UUID, string) (*listing.ProductRecord, error) {
	return nil, listing.ErrProductNotFound
}

func (r *memProducts) FindCorpus(context.Context, uuid.UUID, string, int) ([]listing.CorpusEntry, error) {
	return nil, nil
}

func (r *memProducts) List(context.Context, listing.ProductRecordFilter) ([]listing.ProductRecord, int64, error) {
	return nil, 0, nil
}

func (r *memProducts) ListTransitions(context.Context, uuid.UUID) ([]listing.TransitionRecord, error) {
	return nil, nil
}

func (r *memProducts) Create(_ context.Context, rec *listing.ProductRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ClearPendingTransitions()
	r.records[rec.ID] = *rec
	return nil
}

func (r *memProducts) Save(_ context.Context, rec *listing.ProductRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[rec.ID]
	if !ok {
		return listing.ErrProductNotFound
	}
	if current.Version != rec.Version-1 {
		return listing.ErrVersionConflict
	}
	rec.ClearPendingTransitions()
	r.records[rec.ID] = *rec
	return nil
}

func (r *memProducts) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *memProducts) get(id uuid.UUID) listing.ProductRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

// ---------------------------------------------------------------------------
// Channel doubles
// ---------------------------------------------------------------------------

// fakeChannel is a scriptable remote channel
type fakeChannel struct {
	mu        sync.Mutex
	listings  map[string]integration.RemoteListingState
	orders    []integration.RemoteOrderData
	upserts   int
	nextID    int
	failWith  error
	probeErr  error
	delay     time.Duration
	deactives []string
	// onUpsert runs before the listing is stored, outside the channel mutex
	onUpsert func(integration.ListingUpdate)
	// pullDelay holds FetchOrders open; pulling and maxPulling count overlap
	pullDelay  time.Duration
	pulling    int
	maxPulling int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{listings: make(map[string]integration.RemoteListingState)}
}

func (c *fakeChannel) Probe(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeErr
}

func (c *fakeChannel) UpsertListing(ctx context.Context, u integration.ListingUpdate) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	if c.onUpsert != nil {
		c.onUpsert(u)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts++
	if c.failWith != nil {
		return "", c.failWith
	}
	id := u.RemoteListingID
	if id == "" {
		c.nextID++
		id = fmt.Sprintf("remote-%d", c.nextID)
	}
	c.listings[id] = integration.RemoteListingState{
		RemoteListingID: id,
		Price:           u.Price,
		Quantity:        u.Quantity,
		Active:          true,
	}
	return id, nil
}

func (c *fakeChannel) DeactivateListing(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	state, ok := c.listings[id]
	if !ok {
		return integration.ErrRemoteListingNotFound
	}
	state.Active = false
	state.Quantity = 0
	c.listings[id] = state
	c.deactives = append(c.deactives, id)
	return nil
}

func (c *fakeChannel) FetchOrders(_ context.Context, since time.Time) ([]integration.RemoteOrderData, error) {
	if c.pullDelay > 0 {
		c.mu.Lock()
		c.pulling++
		if c.pulling > c.maxPulling {
			c.maxPulling = c.pulling
		}
		c.mu.Unlock()
		time.Sleep(c.pullDelay)
		c.mu.Lock()
		c.pulling--
		c.mu.Unlock()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return nil, c.failWith
	}
	var out []integration.RemoteOrderData
	for _, o := range c.orders {
		if !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (c *fakeChannel) GetListing(_ context.Context, id string) (*integration.RemoteListingState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return nil, c.failWith
	}
	state, ok := c.listings[id]
	if !ok {
		return nil, integration.ErrRemoteListingNotFound
	}
	return &state, nil
}

func (c *fakeChannel) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(c.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeChannel) setFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

func (c *fakeChannel) editRemotePrice(id string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.listings[id]
	state.Price = price
	c.listings[id] = state
}

func (c *fakeChannel) upsertCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts
}

// channelClients hands out one fakeChannel per connection
type channelClients struct {
	clients map[uuid.UUID]*fakeChannel
}

func (p *channelClients) ClientFor(conn *integration.ChannelConnection) (integration.ChannelClient, error) {
	c, ok := p.clients[conn.ID]
	if !ok {
		return nil, integration.ErrChannelTypeUnsupported
	}
	return c, nil
}

// fakeFactory builds fakeChannels for the "marketplace" type
type fakeFactory struct {
	channel *fakeChannel
}

func (f *fakeFactory) Supports(t integration.ChannelType) bool {
	return t == "marketplace"
}

func (f *fakeFactory) ClientFor(*integration.ChannelConnection, integration.Credentials) (integration.ChannelClient, error) {
	return f.channel, nil
}

// plainSealer stores credentials as "k=v" without encryption
type plainSealer struct{}

func (plainSealer) Seal(creds integration.Credentials) ([]byte, error) {
	out := ""
	for k, v := range creds {
		out += k + "=" + v + ";"
	}
	return []byte(out), nil
}

func (plainSealer) Open(sealed []byte) (integration.Credentials, error) {
	if len(sealed) == 0 {
		return nil, errors.New("empty")
	}
	return integration.Credentials{"raw": string(sealed)}, nil
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

type recordingTrigger struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (t *recordingTrigger) TriggerPass(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = append(t.ids, id)
	return nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func activeProduct(supplierID uuid.UUID, price float64, stock int) *listing.ProductRecord {
	rec, _ := listing.NewAutoApprovedProductRecord(supplierID, &listing.CandidateListing{
		SourceURL: "https://supplier.example.com/p/" + uuid.NewString(),
		Fields: listing.FieldSet{
			Title:    "Enamel Camp Mug",
			Price:    decimal.NewFromFloat(price),
			Category: "outdoor",
		},
		Confidence: 0.95,
	}, nil)
	rec.ClearDomainEvents()
	rec.Stock = stock
	return rec
}

func connectedConnection(supplierID uuid.UUID) *integration.ChannelConnection {
	conn, _ := integration.NewChannelConnection(supplierID, "marketplace", []byte("sealed"), false)
	conn.MarkHealthy(time.Now())
	return conn
}
