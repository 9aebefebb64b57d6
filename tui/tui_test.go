// ABOUTME: Tests for the TUI model
// ABOUTME: Drives Update with key and data messages against a temp SQLite store
package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
)

type stubGateway struct{}

func (stubGateway) Connect(context.Context, string, string) error { return nil }

func (stubGateway) ListContacts(context.Context) ([]gateway.Contact, error) {
	return []gateway.Contact{
		{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		{ID: "c2", FirstName: "Grace", LastName: "Hopper"},
	}, nil
}

func (stubGateway) ListOpportunities(context.Context) ([]gateway.Opportunity, error) {
	return []gateway.Opportunity{{ID: "o1", Name: "Roof install", MonetaryValue: "1200"}}, nil
}

func setupModel(t *testing.T, connect bool) Model {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := db.NewStore(database, nil, nil)
	t.Cleanup(func() { _ = store.Close() })

	svc := sync.NewService(store, func() (sync.Gateway, error) { return stubGateway{}, nil })
	sess := sync.NewSession("user-1")
	if connect {
		require.True(t, svc.Connect(context.Background(), sess, "valid-key-123", ""))
	}
	return NewModel(context.Background(), svc, sess, models.DefaultSyncOptions(), nil)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestDashboardRendersLoadedData(t *testing.T) {
	m := setupModel(t, false)
	m, _ = update(t, m, m.loadData()())

	out := m.View()
	assert.Contains(t, out, "LEADSYNC")
	assert.Contains(t, out, "not connected, never synced")
	assert.Contains(t, out, "s: Sync now")
}

func TestSyncKeyRunsPassAndReloads(t *testing.T) {
	m := setupModel(t, true)

	m, cmd := update(t, m, runes("s"))
	require.NotNil(t, cmd)
	assert.True(t, m.syncing)
	assert.Contains(t, m.View(), "Syncing...")

	m, again := update(t, m, runes("s"))
	assert.Nil(t, again)
	assert.Contains(t, m.syncMessages[len(m.syncMessages)-1], "sync already running")

	done, ok := cmd().(SyncCompleteMsg)
	require.True(t, ok)
	assert.True(t, done.Result.Success)

	m, reload := update(t, m, done)
	assert.False(t, m.syncing)
	assert.Contains(t, m.syncMessages[len(m.syncMessages)-1], "✓ sync completed: 2 contacts, 1 opportunities")
	require.NotNil(t, reload)

	m, _ = update(t, m, reload())
	assert.Len(t, m.contacts, 2)
	assert.Len(t, m.opportunities, 1)
	assert.Len(t, m.runs, 1)

	m, _ = update(t, m, runes("2"))
	assert.Equal(t, ViewContacts, m.viewMode)
	assert.Contains(t, m.View(), "Ada Lovelace")

	m, _ = update(t, m, runes("3"))
	assert.Contains(t, m.View(), "Roof install")

	m, _ = update(t, m, runes("4"))
	assert.Contains(t, m.View(), "manual")
}

func TestSyncFailureIsReported(t *testing.T) {
	m := setupModel(t, false)

	m, cmd := update(t, m, runes("s"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.syncMessages[len(m.syncMessages)-1], "✗ sync failed: "+sync.ErrNotConnected.Error())
}

func TestNavigation(t *testing.T) {
	m := setupModel(t, true)
	require.True(t, m.svc.SyncAll(context.Background(), m.sess, models.DefaultSyncOptions()).Success)
	m, _ = update(t, m, m.loadData()())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ViewContacts, m.viewMode)

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	assert.Equal(t, 1, m.selectedRow)
	m, _ = update(t, m, runes("k"))
	assert.Equal(t, 0, m.selectedRow)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, ViewRuns, m.viewMode)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)

	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestChangesTriggerReload(t *testing.T) {
	m := setupModel(t, true)
	changes := make(chan struct{}, 1)
	m.changes = changes

	wait := m.waitForChange()
	require.NotNil(t, wait)
	changes <- struct{}{}
	msg := wait()
	assert.IsType(t, changeMsg{}, msg)

	_, cmd := update(t, m, msg)
	assert.NotNil(t, cmd)

	m.changes = nil
	assert.Nil(t, m.waitForChange())
}

func TestSyncMessagesAreBounded(t *testing.T) {
	m := setupModel(t, false)
	for i := 0; i < maxSyncMessages+3; i++ {
		m.addSyncMessage("tick")
	}
	assert.Len(t, m.syncMessages, maxSyncMessages)
}

func TestFormatTimeSince(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := map[time.Duration]string{
		30 * time.Second: "just now",
		time.Minute:      "1 minute ago",
		5 * time.Minute:  "5 minutes ago",
		time.Hour:        "1 hour ago",
		3 * time.Hour:    "3 hours ago",
		24 * time.Hour:   "1 day ago",
		72 * time.Hour:   "3 days ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, formatTimeSince(now.Add(-ago), now), ago.String())
	}
}
