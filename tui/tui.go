// ABOUTME: Terminal dashboard for leadsync built on bubbletea
// ABOUTME: Live views of synced contacts, opportunities and run history
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
)

// ViewMode is the active tab.
type ViewMode int

const (
	ViewDashboard ViewMode = iota
	ViewContacts
	ViewOpportunities
	ViewRuns
)

var viewNames = []string{"Dashboard", "Contacts", "Opportunities", "Runs"}

// listLimit bounds the rows loaded per view.
const listLimit = 200

// Model is the main bubbletea model.
type Model struct {
	ctx  context.Context
	svc  *sync.Service
	sess *sync.Session
	opts models.SyncOptions
	now  func() time.Time

	viewMode    ViewMode
	selectedRow int

	status        sync.Status
	contacts      []models.Contact
	opportunities []models.Opportunity
	pipelines     []models.Pipeline
	runs          []models.SyncRun

	changes <-chan struct{}

	syncing      bool
	syncMessages []string

	width  int
	height int
	err    error
}

// NewModel builds a model. changes may be nil; when set, every receive
// triggers a reload.
func NewModel(ctx context.Context, svc *sync.Service, sess *sync.Session, opts models.SyncOptions, changes <-chan struct{}) Model {
	return Model{
		ctx:      ctx,
		svc:      svc,
		sess:     sess,
		opts:     opts,
		now:      time.Now,
		viewMode: ViewDashboard,
		changes:  changes,
		width:    100,
		height:   30,
	}
}

// Run subscribes to store changes and runs the dashboard until the user quits.
func Run(ctx context.Context, svc *sync.Service, sess *sync.Session, opts models.SyncOptions) error {
	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	stopContacts := svc.SubscribeToContacts(ctx, sess, models.ContactFilter{Limit: listLimit}, func([]models.Contact) { notify() })
	defer stopContacts()
	stopOpps := svc.SubscribeToOpportunities(ctx, sess, models.OpportunityFilter{Limit: listLimit}, func([]models.Opportunity) { notify() })
	defer stopOpps()

	p := tea.NewProgram(NewModel(ctx, svc, sess, opts, changes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadData(), m.waitForChange())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case dataLoadedMsg:
		m.applyData(msg)
		return m, nil
	case changeMsg:
		return m, tea.Batch(m.loadData(), m.waitForChange())
	case SyncCompleteMsg:
		return m, m.handleSyncComplete(msg)
	}
	return m, nil
}

func (m Model) View() string {
	var body string
	switch m.viewMode {
	case ViewDashboard:
		body = m.renderDashboardView()
	case ViewContacts:
		body = m.renderContactsView()
	case ViewOpportunities:
		body = m.renderOpportunitiesView()
	case ViewRuns:
		body = m.renderRunsView()
	}

	return titleStyle.Render("LEADSYNC") + "\n" +
		m.renderTabs() + "\n\n" +
		body + "\n" +
		m.renderSyncLog() +
		m.renderHelp()
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "right", "l":
		m.switchView((m.viewMode + 1) % ViewMode(len(viewNames)))
	case "shift+tab", "left", "h":
		m.switchView((m.viewMode + ViewMode(len(viewNames)) - 1) % ViewMode(len(viewNames)))
	case "1", "2", "3", "4":
		m.switchView(ViewMode(msg.String()[0] - '1'))
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < m.rowCount()-1 {
			m.selectedRow++
		}
	case "r":
		return m, m.loadData()
	case "s":
		if m.syncing {
			m.addSyncMessage("sync already running")
			return m, nil
		}
		m.syncing = true
		m.addSyncMessage("Starting sync...")
		return m, m.runSync()
	}
	return m, nil
}

func (m *Model) switchView(v ViewMode) {
	if v != m.viewMode {
		m.viewMode = v
		m.selectedRow = 0
	}
}

func (m Model) rowCount() int {
	switch m.viewMode {
	case ViewContacts:
		return len(m.contacts)
	case ViewOpportunities:
		return len(m.opportunities)
	case ViewRuns:
		return len(m.runs)
	}
	return 0
}

type changeMsg struct{}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

type dataLoadedMsg struct {
	status        sync.Status
	contacts      []models.Contact
	opportunities []models.Opportunity
	pipelines     []models.Pipeline
	runs          []models.SyncRun
	err           error
}

func (m Model) loadData() tea.Cmd {
	ctx, svc, sess := m.ctx, m.svc, m.sess
	return func() tea.Msg {
		var msg dataLoadedMsg
		msg.status = svc.GetStatus(ctx, sess)
		if msg.contacts, msg.err = svc.GetContacts(ctx, sess, models.ContactFilter{Limit: listLimit}); msg.err != nil {
			return msg
		}
		if msg.opportunities, msg.err = svc.GetOpportunities(ctx, sess, models.OpportunityFilter{Limit: listLimit}); msg.err != nil {
			return msg
		}
		if msg.pipelines, msg.err = svc.GetPipelines(ctx, sess); msg.err != nil {
			return msg
		}
		msg.runs, msg.err = svc.ListSyncRuns(ctx, sess, 20)
		return msg
	}
}

func (m *Model) applyData(msg dataLoadedMsg) {
	m.status = msg.status
	m.err = msg.err
	if msg.err != nil {
		return
	}
	m.contacts = msg.contacts
	m.opportunities = msg.opportunities
	m.pipelines = msg.pipelines
	m.runs = msg.runs
	if n := m.rowCount(); m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)
