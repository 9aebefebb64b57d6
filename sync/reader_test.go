package sync

import (
	"context"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorder collects subscription deliveries.
type recorder[T any] struct {
	mu    gosync.Mutex
	calls [][]T
}

func (r *recorder[T]) record(items []T) {
	r.mu.Lock()
	r.calls = append(r.calls, items)
	r.mu.Unlock()
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder[T]) last() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func TestReadsWithoutOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore(), &fakeGateway{})

	contacts, err := svc.GetContacts(ctx, NewSession(""), models.ContactFilter{})
	require.NoError(t, err)
	assert.NotNil(t, contacts)
	assert.Empty(t, contacts)

	opps, err := svc.GetOpportunities(ctx, nil, models.OpportunityFilter{})
	require.NoError(t, err)
	assert.Empty(t, opps)

	runs, err := svc.ListSyncRuns(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	called := false
	unsubscribe := svc.SubscribeToContacts(ctx, NewSession(""), models.ContactFilter{}, func([]models.Contact) { called = true })
	require.NotNil(t, unsubscribe)
	unsubscribe()
	unsubscribe()

	unsubscribe = svc.SubscribeToOpportunities(ctx, nil, models.OpportunityFilter{}, func([]models.Opportunity) { called = true })
	unsubscribe()
	assert.False(t, called)
}

func TestSubscribeToContactsDeliversOnChange(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{contacts: contactList(2)}
	svc := newTestService(store, gw)
	sess := connectedSession(t, svc, "user-1")

	rec := &recorder[models.Contact]{}
	unsubscribe := svc.SubscribeToContacts(ctx, sess, models.ContactFilter{}, rec.record)

	assert.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.last())

	require.True(t, svc.SyncAll(ctx, sess, contactsOnly(10)).Success)
	assert.Eventually(t, func() bool { return len(rec.last()) == 2 }, time.Second, 5*time.Millisecond)

	gw.setContacts(contactList(4)...)
	require.True(t, svc.SyncAll(ctx, sess, contactsOnly(10)).Success)
	assert.Eventually(t, func() bool { return len(rec.last()) == 4 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()

	delivered := rec.count()
	gw.setContacts(contactList(5)...)
	require.True(t, svc.SyncAll(ctx, sess, contactsOnly(10)).Success)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, delivered, rec.count())
	assert.Equal(t, 0, store.hub.Subscribers("user-1", models.KindContacts))
}

func TestSubscribeToOpportunitiesFiltersAndScopes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{opportunities: []gateway.Opportunity{
		{ID: "o1", PipelineID: "p1", Status: "open"},
		{ID: "o2", PipelineID: "p1", Status: "won"},
		{ID: "o3", PipelineID: "p2", Status: "won"},
	}}
	svc := newTestService(store, gw)
	sess := connectedSession(t, svc, "user-1")

	rec := &recorder[models.Opportunity]{}
	unsubscribe := svc.SubscribeToOpportunities(ctx, sess, models.OpportunityFilter{Status: "won"}, rec.record)
	defer unsubscribe()

	other := &recorder[models.Opportunity]{}
	stopOther := svc.SubscribeToOpportunities(ctx, NewSession("user-2"), models.OpportunityFilter{}, other.record)
	defer stopOther()

	require.True(t, svc.SyncAll(ctx, sess, models.SyncOptions{SyncOpportunities: true, BatchSize: 10}).Success)

	assert.Eventually(t, func() bool { return len(rec.last()) == 2 }, time.Second, 5*time.Millisecond)
	for _, o := range rec.last() {
		assert.Equal(t, "won", o.Status)
	}

	// user-2 only ever sees its own, empty, initial result.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, other.count())
	assert.Empty(t, other.last())
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeGateway{})
	sess := connectedSession(t, svc, "user-1")

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder[models.Contact]{}
	unsubscribe := svc.SubscribeToContacts(ctx, sess, models.ContactFilter{}, rec.record)

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		unsubscribe()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe blocked after context cancel")
	}
}

func TestReadsWithoutLimitReturnEverything(t *testing.T) {
	ctx := context.Background()

	database, err := db.OpenDatabase(t.TempDir() + "/leadsync.db")
	require.NoError(t, err)
	store := db.NewStore(database, nil, zap.NewNop())
	defer store.Close()

	records := make([]gateway.Contact, 60)
	for i := range records {
		id := "c" + strconv.Itoa(i+1)
		records[i] = extContact(id, id+"@example.com", "")
	}
	svc := newTestService(store, &fakeGateway{contacts: records})
	sess := connectedSession(t, svc, "user-1")
	require.True(t, svc.SyncAll(ctx, sess, contactsOnly(25)).Success)

	all, err := svc.GetContacts(ctx, sess, models.ContactFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 60)

	some, err := svc.GetContacts(ctx, sess, models.ContactFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, some, 10)

	rec := &recorder[models.Contact]{}
	unsubscribe := svc.SubscribeToContacts(ctx, sess, models.ContactFilter{}, rec.record)
	defer unsubscribe()
	assert.Eventually(t, func() bool { return len(rec.last()) == 60 }, time.Second, 5*time.Millisecond)
}
