// ABOUTME: Tab bar, dashboard and table views for the TUI
// ABOUTME: Tables are rebuilt from the loaded documents on every render
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsync/viz"
)

func (m Model) renderTabs() string {
	rendered := make([]string, 0, len(viewNames))
	for i, name := range viewNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if ViewMode(i) == m.viewMode {
			rendered = append(rendered, tabActiveStyle.Render(label))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderDashboardView() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}
	stats := viz.BuildDashboardStats(m.status, m.contacts, m.opportunities, m.pipelines, m.now(), 5)
	return viz.RenderDashboard(stats)
}

func (m Model) tableHeight() int {
	return max(m.height-12, 5)
}

func (m Model) renderTable(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
	if len(rows) > 0 {
		t.SetCursor(m.selectedRow)
	}

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t.View()
}

func (m Model) renderContactsView() string {
	if len(m.contacts) == 0 {
		return "No contacts synced yet. Press 's' to sync."
	}

	columns := []table.Column{
		{Title: "Score", Width: 5},
		{Title: "Name", Width: 24},
		{Title: "Email", Width: 28},
		{Title: "Status", Width: 12},
		{Title: "Source", Width: 12},
		{Title: "Est. value", Width: 10},
	}
	rows := make([]table.Row, 0, len(m.contacts))
	for i := range m.contacts {
		c := &m.contacts[i]
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.LeadScore),
			c.Name(),
			c.Email,
			c.Status,
			c.Source,
			"$" + c.EstimatedValue.StringFixed(0),
		})
	}
	return m.renderTable(columns, rows)
}

func (m Model) renderOpportunitiesView() string {
	if len(m.opportunities) == 0 {
		return "No opportunities synced yet. Press 's' to sync."
	}

	names := make(map[string]string, len(m.pipelines))
	stageNames := make(map[string]func(string) string, len(m.pipelines))
	for i := range m.pipelines {
		p := &m.pipelines[i]
		names[p.ExternalID] = p.Name
		stageNames[p.ExternalID] = p.StageName
	}

	columns := []table.Column{
		{Title: "Name", Width: 28},
		{Title: "Pipeline", Width: 16},
		{Title: "Stage", Width: 16},
		{Title: "Status", Width: 10},
		{Title: "Value", Width: 12},
	}
	rows := make([]table.Row, 0, len(m.opportunities))
	for i := range m.opportunities {
		o := &m.opportunities[i]
		pipeline, stage := o.PipelineID, o.StageID
		if name, ok := names[o.PipelineID]; ok {
			pipeline = name
			stage = stageNames[o.PipelineID](o.StageID)
		}
		rows = append(rows, table.Row{
			o.Name,
			pipeline,
			stage,
			o.Status,
			"$" + o.MonetaryValue.StringFixed(2),
		})
	}
	return m.renderTable(columns, rows)
}

func (m Model) renderRunsView() string {
	if len(m.runs) == 0 {
		return "No sync runs recorded yet."
	}

	columns := []table.Column{
		{Title: "Started", Width: 19},
		{Title: "Trigger", Width: 10},
		{Title: "Status", Width: 8},
		{Title: "Contacts", Width: 8},
		{Title: "Opps", Width: 6},
		{Title: "Errors", Width: 36},
	}
	rows := make([]table.Row, 0, len(m.runs))
	for i := range m.runs {
		r := &m.runs[i]
		rows = append(rows, table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Trigger,
			r.Status,
			fmt.Sprintf("%d", r.ContactsSynced),
			fmt.Sprintf("%d", r.OpportunitiesSynced),
			strings.Join(r.Errors, "; "),
		})
	}
	return m.renderTable(columns, rows)
}

func (m Model) renderHelp() string {
	help := []string{
		"tab/1-4: Switch view",
		"↑/↓: Select",
		"s: Sync now",
		"r: Refresh",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}
