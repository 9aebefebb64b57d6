// ABOUTME: Tests for the pipeline graph and the text dashboard
// ABOUTME: Builds documents in memory; no store is involved
package viz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func samplePipelines() []models.Pipeline {
	return []models.Pipeline{{
		ExternalID: "p1",
		Name:       "Residential",
		Stages: []models.Stage{
			{ID: "s2", Name: "Proposal", Position: 1},
			{ID: "s1", Name: "Lead", Position: 0},
		},
	}}
}

func sampleOpportunities() []models.Opportunity {
	return []models.Opportunity{
		{ExternalID: "o1", PipelineID: "p1", StageID: "s1", Status: "open", MonetaryValue: decimal.NewFromInt(1000)},
		{ExternalID: "o2", PipelineID: "p1", StageID: "s1", Status: "open", MonetaryValue: decimal.NewFromInt(500)},
		{ExternalID: "o3", PipelineID: "p1", StageID: "s2", Status: "won", MonetaryValue: decimal.NewFromInt(2000)},
		{ExternalID: "o4", PipelineID: "gone", Status: "open", MonetaryValue: decimal.NewFromInt(10)},
	}
}

func TestGeneratePipelineGraph(t *testing.T) {
	dot, err := GeneratePipelineGraph(context.Background(), samplePipelines(), sampleOpportunities())
	require.NoError(t, err)

	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, "Residential")
	assert.Contains(t, dot, "Proposal")
	assert.Contains(t, dot, "pipeline_p1")
	assert.Contains(t, dot, "stage_p1_s1")
	assert.Contains(t, dot, "unstaged")
}

func TestGeneratePipelineGraphEmpty(t *testing.T) {
	dot, err := GeneratePipelineGraph(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, dot, "unstaged")
}

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "Lead\n0 opportunities", stageLabel("Lead", nil))
	assert.Equal(t, "Lead\n2 opportunities\n$1500", stageLabel("Lead", &stageTotals{count: 2, value: decimal.NewFromInt(1500)}))
}

func TestBuildDashboardStats(t *testing.T) {
	recent := now.Add(-24 * time.Hour)
	contacts := []models.Contact{
		{ExternalID: "c1", FirstName: "Ada", Status: "new", LeadScore: 90, EstimatedValue: decimal.NewFromInt(30000), LastActivityAt: &recent},
		{ExternalID: "c2", FirstName: "Grace", Status: "qualified", LeadScore: 50, EstimatedValue: decimal.NewFromInt(15000)},
		{ExternalID: "c3", Email: "x@example.com", Status: "new", LeadScore: 10, EstimatedValue: decimal.NewFromInt(15000)},
	}
	status := sync.Status{IsConnected: true, LastSync: &now, ContactCount: 3, OpportunityCount: 4}

	stats := BuildDashboardStats(status, contacts, sampleOpportunities(), samplePipelines(), now, 2)

	assert.Equal(t, map[string]int{"new": 2, "qualified": 1}, stats.ContactsByStatus)
	assert.Equal(t, 1, stats.Hot)
	assert.Equal(t, 1, stats.Warm)
	assert.Equal(t, 1, stats.Cold)
	assert.Equal(t, 50, stats.AverageScore)
	assert.Equal(t, "60000", stats.EstimatedValue.String())
	assert.Equal(t, 2, stats.StaleContacts)
	require.Len(t, stats.TopLeads, 2)
	assert.Equal(t, "c1", stats.TopLeads[0].ExternalID)
	assert.Equal(t, "c2", stats.TopLeads[1].ExternalID)

	assert.Equal(t, "1510", stats.OpenValue.String())
	require.Len(t, stats.Stages, 3)
	assert.Equal(t, StageStats{Pipeline: "Residential", Stage: "Lead", Count: 2, Value: stats.Stages[0].Value}, stats.Stages[0])
	assert.Equal(t, "1500", stats.Stages[0].Value.String())
	assert.Equal(t, "Proposal", stats.Stages[1].Stage)
	assert.Equal(t, "gone", stats.Stages[2].Pipeline)
	assert.Equal(t, "unstaged", stats.Stages[2].Stage)
}

func TestRenderDashboard(t *testing.T) {
	stats := BuildDashboardStats(sync.Status{}, nil, nil, nil, now, 5)
	out := RenderDashboard(stats)
	assert.Contains(t, out, "LEADSYNC DASHBOARD")
	assert.Contains(t, out, "not connected, never synced")
	assert.Contains(t, out, "no opportunities")
	assert.NotContains(t, out, "NEEDS ATTENTION")

	stats = BuildDashboardStats(sync.Status{IsConnected: true, LastSync: &now, ContactCount: 1},
		[]models.Contact{{ExternalID: "c9", LeadScore: 75}}, sampleOpportunities(), samplePipelines(), now, 5)
	out = RenderDashboard(stats)
	assert.Contains(t, out, "✓ connected, last sync")
	assert.Contains(t, out, " 75  c9")
	assert.Contains(t, out, "Residential / Lead")
	assert.Equal(t, 1, strings.Count(out, "NEEDS ATTENTION"))
}
