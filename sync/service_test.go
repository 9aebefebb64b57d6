package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatusBeforeConnect(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore(), &fakeGateway{})

	for name, sess := range map[string]*Session{
		"nil session":     nil,
		"no owner":        NewSession(""),
		"never connected": NewSession("user-1"),
	} {
		t.Run(name, func(t *testing.T) {
			status := svc.GetStatus(ctx, sess)
			assert.Equal(t, Status{}, status)
			assert.Nil(t, status.LastSync)
			assert.False(t, status.IsConnected)
		})
	}
}

func TestGetStatusSwallowsStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store, &fakeGateway{contacts: contactList(2)})
	sess := connectedSession(t, svc, "user-1")
	require.True(t, svc.SyncAll(ctx, sess, contactsOnly(10)).Success)

	store.countErr = errors.New("database is locked")
	status := svc.GetStatus(ctx, sess)
	assert.True(t, status.IsConnected)
	assert.Equal(t, 0, status.ContactCount)

	store.connErr = errors.New("database is locked")
	assert.Equal(t, Status{}, svc.GetStatus(ctx, sess))
}

func TestConnectRejectsMissingInputs(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{}
	svc := newTestService(store, gw)

	assert.False(t, svc.Connect(ctx, NewSession("user-1"), "", "locA"))
	assert.False(t, svc.Connect(ctx, NewSession("user-1"), "   ", "locA"))
	assert.False(t, svc.Connect(ctx, NewSession(""), "valid-key-123", "locA"))
	assert.False(t, svc.Connect(ctx, nil, "valid-key-123", "locA"))

	assert.Equal(t, 0, gw.calls())
	_, ok := store.connection("user-1")
	assert.False(t, ok)
}

func TestConnectFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()

	cases := map[string]*fakeGateway{
		"rejected key":   {connectErr: errors.New("401 unauthorized")},
		"gateway panics": {connectPanic: true},
	}
	for name, gw := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(store, gw)
			sess := NewSession("user-1")

			assert.False(t, svc.Connect(ctx, sess, "bad-key", ""))
			assert.False(t, sess.Connected())
			_, ok := store.connection("user-1")
			assert.False(t, ok)
			assert.False(t, svc.GetStatus(ctx, sess).IsConnected)
		})
	}

	t.Run("factory fails", func(t *testing.T) {
		svc := NewService(newMemStore(), func() (Gateway, error) { return nil, errors.New("bad base url") })
		assert.False(t, svc.Connect(ctx, NewSession("user-1"), "valid-key-123", ""))
	})

	t.Run("store read fails", func(t *testing.T) {
		store := newMemStore()
		store.connErr = errors.New("disk I/O error")
		svc := newTestService(store, &fakeGateway{})
		sess := NewSession("user-1")
		assert.False(t, svc.Connect(ctx, sess, "valid-key-123", ""))
		assert.False(t, sess.Connected())
	})
}

func TestConnectStoresRedactedConnection(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{}
	svc := newTestService(store, gw)
	sess := NewSession("user-1")

	require.True(t, svc.Connect(ctx, sess, "valid-key-123", "locA"))
	assert.True(t, sess.Connected())
	assert.Equal(t, "valid-key-123", gw.apiKey)
	assert.Equal(t, "locA", gw.locationID)

	conn, ok := store.connection("user-1")
	require.True(t, ok)
	assert.True(t, conn.Active)
	assert.Equal(t, "vali****", conn.CredentialHint)
	assert.Equal(t, "locA", conn.LocationID)
	assert.Equal(t, testNow, conn.ConnectedAt)
	assert.Nil(t, conn.LastSyncAt)

	status := svc.GetStatus(ctx, sess)
	assert.True(t, status.IsConnected)
	assert.Nil(t, status.LastSync)
}

func TestReconnectPreservesLastSync(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	lastSync := testNow.Add(-time.Hour)
	require.NoError(t, store.SaveConnection(ctx, &models.Connection{
		OwnerUserID: "user-1", Active: false, LastSyncAt: &lastSync,
	}))
	svc := newTestService(store, &fakeGateway{})

	sess := connectedSession(t, svc, "user-1")
	status := svc.GetStatus(ctx, sess)
	require.NotNil(t, status.LastSync)
	assert.Equal(t, lastSync, *status.LastSync)
	assert.True(t, status.IsConnected)
}

func TestDisconnectKeepsDocuments(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store, &fakeGateway{contacts: contactList(2)})
	sess := connectedSession(t, svc, "user-1")
	require.True(t, svc.SyncAll(ctx, sess, contactsOnly(10)).Success)

	h, err := svc.StartAutoSync(sess, 60, models.DefaultSyncOptions())
	require.NoError(t, err)

	svc.Disconnect(ctx, sess)

	assert.False(t, sess.Connected())
	assert.Nil(t, sess.AutoSync())
	assert.True(t, h.Stopped())

	conn, ok := store.connection("user-1")
	require.True(t, ok)
	assert.False(t, conn.Active)
	assert.Empty(t, conn.CredentialHint)
	assert.NotNil(t, conn.LastSyncAt)

	status := svc.GetStatus(ctx, sess)
	assert.False(t, status.IsConnected)
	assert.Equal(t, 2, status.ContactCount)

	result := svc.SyncAll(ctx, sess, contactsOnly(10))
	assert.Equal(t, []string{ErrNotConnected.Error()}, result.Errors)

	// Disconnecting twice, or without ever connecting, is harmless.
	svc.Disconnect(ctx, sess)
	svc.Disconnect(ctx, NewSession("user-2"))
	svc.Disconnect(ctx, nil)
}

func TestSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store, &fakeGateway{contacts: contactList(3)})

	alice := connectedSession(t, svc, "alice")
	bob := NewSession("bob")

	require.True(t, svc.SyncAll(ctx, alice, contactsOnly(10)).Success)

	assert.Equal(t, 3, svc.GetStatus(ctx, alice).ContactCount)
	assert.Equal(t, Status{}, svc.GetStatus(ctx, bob))

	contacts, err := svc.GetContacts(ctx, bob, models.ContactFilter{})
	require.NoError(t, err)
	assert.Empty(t, contacts)

	c, err := svc.GetContact(ctx, bob, models.DocumentKey("alice", "c1"))
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestReconnectKeepsConnectedAt(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	clock := testNow
	svc := newTestService(store, &fakeGateway{}, WithClock(func() time.Time { return clock }))

	require.True(t, svc.Connect(ctx, NewSession("user-1"), "valid-key-123", "locA"))

	clock = testNow.Add(time.Hour)
	require.True(t, svc.Connect(ctx, NewSession("user-1"), "valid-key-123", "locA"))
	conn, ok := store.connection("user-1")
	require.True(t, ok)
	assert.Equal(t, testNow, conn.ConnectedAt)
	assert.Equal(t, clock, conn.UpdatedAt)

	// After a disconnect the next connect starts a new connection.
	sess := NewSession("user-1")
	require.True(t, svc.Connect(ctx, sess, "valid-key-123", "locA"))
	svc.Disconnect(ctx, sess)

	clock = testNow.Add(2 * time.Hour)
	require.True(t, svc.Connect(ctx, NewSession("user-1"), "valid-key-123", "locA"))
	conn, _ = store.connection("user-1")
	assert.Equal(t, clock, conn.ConnectedAt)
}
