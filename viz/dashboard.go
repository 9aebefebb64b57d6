// ABOUTME: Text dashboard of the synced store
// ABOUTME: Summarizes connection state, lead quality and pipeline value
package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
)

// Score bands used to bucket contacts.
const (
	HotScore  = 70
	WarmScore = 40
)

// staleAfter marks a contact with no activity in this long as needing attention.
const staleAfter = 30 * 24 * time.Hour

type DashboardStats struct {
	Status sync.Status

	ContactsByStatus map[string]int
	Hot              int
	Warm             int
	Cold             int
	AverageScore     int
	EstimatedValue   decimal.Decimal
	TopLeads         []models.Contact
	StaleContacts    int

	Stages    []StageStats
	OpenValue decimal.Decimal
}

type StageStats struct {
	Pipeline string
	Stage    string
	Count    int
	Value    decimal.Decimal
}

// BuildDashboardStats summarizes the given documents. topN bounds TopLeads.
func BuildDashboardStats(status sync.Status, contacts []models.Contact, opps []models.Opportunity, pipelines []models.Pipeline, now time.Time, topN int) *DashboardStats {
	stats := &DashboardStats{
		Status:           status,
		ContactsByStatus: make(map[string]int),
		EstimatedValue:   decimal.Zero,
		OpenValue:        decimal.Zero,
	}

	totalScore := 0
	for i := range contacts {
		c := &contacts[i]
		stats.ContactsByStatus[c.Status]++
		totalScore += c.LeadScore
		stats.EstimatedValue = stats.EstimatedValue.Add(c.EstimatedValue)

		switch {
		case c.LeadScore >= HotScore:
			stats.Hot++
		case c.LeadScore >= WarmScore:
			stats.Warm++
		default:
			stats.Cold++
		}

		if c.LastActivityAt == nil || now.Sub(*c.LastActivityAt) > staleAfter {
			stats.StaleContacts++
		}
	}
	if len(contacts) > 0 {
		stats.AverageScore = totalScore / len(contacts)
	}

	top := append([]models.Contact(nil), contacts...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].LeadScore > top[j].LeadScore })
	if len(top) > topN {
		top = top[:topN]
	}
	stats.TopLeads = top

	pipelineByID := make(map[string]*models.Pipeline, len(pipelines))
	for i := range pipelines {
		pipelineByID[pipelines[i].ExternalID] = &pipelines[i]
	}

	byStage := make(map[[2]string]*StageStats)
	var order [][2]string
	for i := range opps {
		o := &opps[i]
		if o.Status == "open" {
			stats.OpenValue = stats.OpenValue.Add(o.MonetaryValue)
		}

		pipelineName, stageName := o.PipelineID, o.StageID
		if p, ok := pipelineByID[o.PipelineID]; ok {
			pipelineName = p.Name
			stageName = p.StageName(o.StageID)
		}
		if stageName == "" {
			stageName = "unstaged"
		}

		key := [2]string{pipelineName, stageName}
		s, ok := byStage[key]
		if !ok {
			s = &StageStats{Pipeline: pipelineName, Stage: stageName, Value: decimal.Zero}
			byStage[key] = s
			order = append(order, key)
		}
		s.Count++
		s.Value = s.Value.Add(o.MonetaryValue)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i][0] != order[j][0] {
			return order[i][0] < order[j][0]
		}
		return order[i][1] < order[j][1]
	})
	for _, key := range order {
		stats.Stages = append(stats.Stages, *byStage[key])
	}
	return stats
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  LEADSYNC DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("CONNECTION\n")
	if stats.Status.IsConnected {
		out.WriteString("  ✓ connected")
	} else {
		out.WriteString("  ✗ not connected")
	}
	if stats.Status.LastSync != nil {
		out.WriteString(fmt.Sprintf(", last sync %s", stats.Status.LastSync.Local().Format("2006-01-02 15:04")))
	} else {
		out.WriteString(", never synced")
	}
	out.WriteString("\n\n")

	out.WriteString("LEADS\n")
	out.WriteString(fmt.Sprintf("  %d contacts  🔥 %d hot  ☀️  %d warm  ❄️  %d cold  (avg score %d)\n",
		stats.Status.ContactCount, stats.Hot, stats.Warm, stats.Cold, stats.AverageScore))
	out.WriteString(fmt.Sprintf("  estimated value $%s\n", stats.EstimatedValue.StringFixed(0)))
	for _, c := range stats.TopLeads {
		out.WriteString(fmt.Sprintf("  %3d  %s\n", c.LeadScore, displayName(&c)))
	}
	out.WriteString("\n")

	out.WriteString("PIPELINE\n")
	renderStages(&out, stats.Stages)
	out.WriteString(fmt.Sprintf("  open value $%s\n", stats.OpenValue.StringFixed(0)))

	if stats.StaleContacts > 0 {
		out.WriteString("\nNEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d contacts - no activity in 30+ days\n", stats.StaleContacts))
	}

	return out.String()
}

func renderStages(out *strings.Builder, stages []StageStats) {
	if len(stages) == 0 {
		out.WriteString("  no opportunities\n")
		return
	}

	maxCount := 1
	for _, s := range stages {
		if s.Count > maxCount {
			maxCount = s.Count
		}
	}

	for _, s := range stages {
		barLength := (s.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		out.WriteString(fmt.Sprintf("  %-24s %s  %2d ($%s)\n",
			s.Pipeline+" / "+s.Stage, bar, s.Count, s.Value.StringFixed(0)))
	}
}

func displayName(c *models.Contact) string {
	if name := c.Name(); name != "" {
		return name
	}
	if c.Email != "" {
		return c.Email
	}
	return c.ExternalID
}
