package sync

import (
	"context"
	"errors"
	"sort"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/leadsync/changefeed"
	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/kvstore"
	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ Store = (*db.Store)(nil)
	_ Store = (*kvstore.Store)(nil)
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store that records every batch commit.
type memStore struct {
	mu            gosync.Mutex
	hub           *changefeed.Hub
	conns         map[string]models.Connection
	contacts      map[string]models.Contact
	opportunities map[string]models.Opportunity
	pipelines     map[string]models.Pipeline
	runs          []models.SyncRun
	status        map[string]string
	commitSizes   []int

	connErr   error
	countErr  error
	commitErr   func(commit int) error
	commitPanic int
}

func newMemStore() *memStore {
	return &memStore{
		hub:           changefeed.NewHub(),
		conns:         make(map[string]models.Connection),
		contacts:      make(map[string]models.Contact),
		opportunities: make(map[string]models.Opportunity),
		pipelines:     make(map[string]models.Pipeline),
		status:        make(map[string]string),
	}
}

func (m *memStore) GetConnection(_ context.Context, owner string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connErr != nil {
		return nil, m.connErr
	}
	c, ok := m.conns[owner]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) SaveConnection(ctx context.Context, conn *models.Connection) error {
	m.mu.Lock()
	m.conns[conn.OwnerUserID] = *conn
	m.mu.Unlock()
	return m.hub.Publish(ctx, models.Change{OwnerUserID: conn.OwnerUserID, Kind: models.KindConnection})
}

func (m *memStore) TouchLastSync(_ context.Context, owner string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[owner]
	if !ok {
		return errors.New("no connection")
	}
	c.LastSyncAt = &at
	m.conns[owner] = c
	return nil
}

func (m *memStore) CommitBatch(ctx context.Context, batch *models.Batch) error {
	m.mu.Lock()
	commit := len(m.commitSizes) + 1
	m.commitSizes = append(m.commitSizes, batch.Len())
	if commit == m.commitPanic {
		m.mu.Unlock()
		panic("boom")
	}
	if m.commitErr != nil {
		if err := m.commitErr(commit); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	for _, c := range batch.Contacts {
		m.contacts[c.Key] = c
	}
	for _, o := range batch.Opportunities {
		m.opportunities[o.Key] = o
	}
	for _, p := range batch.Pipelines {
		m.pipelines[p.Key] = p
	}
	m.mu.Unlock()

	for _, kind := range batch.Kinds() {
		_ = m.hub.Publish(ctx, models.Change{OwnerUserID: batch.OwnerUserID, Kind: kind})
	}
	return nil
}

func (m *memStore) GetContact(_ context.Context, key string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) GetOpportunity(_ context.Context, key string) (*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.opportunities[key]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) FindContacts(_ context.Context, owner string, filter models.ContactFilter) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Contact{}
	for _, c := range m.contacts {
		if c.OwnerUserID == owner && filter.Matches(&c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	out = out[:filter.Truncate(len(out))]
	return out, nil
}

func (m *memStore) FindOpportunities(_ context.Context, owner string, filter models.OpportunityFilter) ([]models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Opportunity{}
	for _, o := range m.opportunities {
		if o.OwnerUserID == owner && filter.Matches(&o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	out = out[:filter.Truncate(len(out))]
	return out, nil
}

func (m *memStore) ListPipelines(_ context.Context, owner string) ([]models.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Pipeline{}
	for _, p := range m.pipelines {
		if p.OwnerUserID == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CountContacts(_ context.Context, owner string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, c := range m.contacts {
		if c.OwnerUserID == owner {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountOpportunities(_ context.Context, owner string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, o := range m.opportunities {
		if o.OwnerUserID == owner {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SetSyncStatus(_ context.Context, owner, status, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[owner] = status
	return nil
}

func (m *memStore) RecordSyncRun(_ context.Context, run *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) ListSyncRuns(_ context.Context, owner string, limit int) ([]models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SyncRun{}
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].OwnerUserID == owner {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *memStore) Subscribe(owner string, kind models.Kind) (<-chan models.Change, func()) {
	return m.hub.Subscribe(owner, kind)
}

func (m *memStore) commits() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.commitSizes...)
}

func (m *memStore) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func (m *memStore) connection(owner string) (models.Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[owner]
	return c, ok
}

// fakeGateway serves canned records.
type fakeGateway struct {
	mu            gosync.Mutex
	connectErr    error
	connectPanic  bool
	contacts      []gateway.Contact
	contactsErr   error
	contactsPanic bool
	opportunities []gateway.Opportunity
	oppsErr       error
	block         chan struct{}
	listing       chan struct{}

	connectCalls int
	apiKey       string
	locationID   string
}

func (g *fakeGateway) Connect(_ context.Context, apiKey, locationID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connectCalls++
	if g.connectPanic {
		panic("gateway exploded")
	}
	if g.connectErr != nil {
		return g.connectErr
	}
	g.apiKey, g.locationID = apiKey, locationID
	return nil
}

func (g *fakeGateway) ListContacts(ctx context.Context) ([]gateway.Contact, error) {
	if g.listing != nil {
		close(g.listing)
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.contactsPanic {
		panic("list exploded")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.Contact(nil), g.contacts...), g.contactsErr
}

func (g *fakeGateway) ListOpportunities(context.Context) ([]gateway.Opportunity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.Opportunity(nil), g.opportunities...), g.oppsErr
}

func (g *fakeGateway) setContacts(contacts ...gateway.Contact) {
	g.mu.Lock()
	g.contacts = contacts
	g.mu.Unlock()
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connectCalls
}

// pipelineGateway adds the optional pipeline capability.
type pipelineGateway struct {
	*fakeGateway
	pipelines    []gateway.Pipeline
	pipelinesErr error
}

func (g *pipelineGateway) ListPipelines(context.Context) ([]gateway.Pipeline, error) {
	return g.pipelines, g.pipelinesErr
}

func factoryFor(gw Gateway) GatewayFactory {
	return func() (Gateway, error) { return gw, nil }
}

func newTestService(store Store, gw Gateway, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithLogger(zap.NewNop())}, opts...)
	return NewService(store, factoryFor(gw), opts...)
}

func connectedSession(t *testing.T, svc *Service, owner string) *Session {
	t.Helper()
	sess := NewSession(owner)
	require.True(t, svc.Connect(context.Background(), sess, "valid-key-123", "locA"))
	return sess
}

func extContact(id, email, phone string) gateway.Contact {
	return gateway.Contact{
		ID:        id,
		FirstName: "Lead",
		LastName:  id,
		Email:     email,
		Phone:     phone,
		DateAdded: "2024-05-01T09:00:00Z",
	}
}

func contactList(n int) []gateway.Contact {
	out := make([]gateway.Contact, n)
	for i := range out {
		id := string(rune('1' + i))
		out[i] = extContact("c"+id, "lead"+id+"@example.com", "")
	}
	return out
}
