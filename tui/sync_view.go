// ABOUTME: Sync trigger and activity log for the TUI
// ABOUTME: Runs a pass off the update loop and reports its result
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/leadsync/models"
)

var (
	syncHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	syncSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)

	syncMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

// maxSyncMessages bounds the activity log.
const maxSyncMessages = 5

// SyncCompleteMsg is sent when a sync pass returns.
type SyncCompleteMsg struct {
	Result models.SyncResult
}

func (m Model) runSync() tea.Cmd {
	ctx, svc, sess, opts := m.ctx, m.svc, m.sess, m.opts
	return func() tea.Msg {
		return SyncCompleteMsg{Result: svc.SyncAll(ctx, sess, opts)}
	}
}

func (m *Model) handleSyncComplete(msg SyncCompleteMsg) tea.Cmd {
	m.syncing = false

	r := msg.Result
	switch {
	case r.Success:
		m.addSyncMessage(fmt.Sprintf("✓ sync completed: %d contacts, %d opportunities",
			r.ContactsSynced, r.OpportunitiesSynced))
	case len(r.Errors) > 0:
		m.addSyncMessage(fmt.Sprintf("✗ sync failed: %s", r.Errors[0]))
		if len(r.Errors) > 1 {
			m.addSyncMessage(fmt.Sprintf("  and %d more errors", len(r.Errors)-1))
		}
	default:
		m.addSyncMessage("✗ sync failed")
	}

	return m.loadData()
}

func (m *Model) addSyncMessage(msg string) {
	timestamp := m.now().Format("15:04:05")
	m.syncMessages = append(m.syncMessages, fmt.Sprintf("[%s] %s", timestamp, msg))
	if len(m.syncMessages) > maxSyncMessages {
		m.syncMessages = m.syncMessages[len(m.syncMessages)-maxSyncMessages:]
	}
}

func (m Model) renderSyncLog() string {
	var s strings.Builder

	if m.syncing {
		s.WriteString(syncSyncingStyle.Render("⟳ Syncing..."))
		s.WriteString("\n")
	} else if m.status.LastSync != nil {
		s.WriteString(syncMessageStyle.Render("Last synced " + formatTimeSince(*m.status.LastSync, m.now())))
		s.WriteString("\n")
	}

	if len(m.syncMessages) > 0 {
		s.WriteString("\n")
		s.WriteString(syncHeaderStyle.Render("Recent Activity"))
		s.WriteString("\n")
		for _, msg := range m.syncMessages {
			s.WriteString(syncMessageStyle.Render("  " + msg))
			s.WriteString("\n")
		}
	}
	return s.String()
}

// formatTimeSince formats the time between t and now in a human-readable way.
func formatTimeSince(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
