// ABOUTME: Tool output shapes shared by the MCP handlers
// ABOUTME: Converts store documents into flat JSON-friendly records
package handlers

import (
	"time"

	"github.com/harperreed/leadsync/models"
)

type ContactOutput struct {
	Key            string   `json:"key"`
	ExternalID     string   `json:"external_id"`
	Name           string   `json:"name"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	City           string   `json:"city,omitempty"`
	State          string   `json:"state,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Source         string   `json:"source"`
	Status         string   `json:"status"`
	AssignedTo     string   `json:"assigned_to,omitempty"`
	LeadScore      int      `json:"lead_score"`
	EstimatedValue string   `json:"estimated_value"`
	LastActivityAt string   `json:"last_activity_at,omitempty"`
	SyncedAt       string   `json:"synced_at"`
}

type OpportunityOutput struct {
	Key               string `json:"key"`
	ExternalID        string `json:"external_id"`
	Name              string `json:"name"`
	ContactExternalID string `json:"contact_external_id,omitempty"`
	PipelineID        string `json:"pipeline_id,omitempty"`
	PipelineName      string `json:"pipeline_name,omitempty"`
	StageID           string `json:"stage_id,omitempty"`
	StageName         string `json:"stage_name,omitempty"`
	Status            string `json:"status"`
	MonetaryValue     string `json:"monetary_value"`
	AssignedTo        string `json:"assigned_to,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
	SyncedAt          string `json:"synced_at"`
}

type SyncRunOutput struct {
	ID                  string   `json:"id"`
	Trigger             string   `json:"trigger"`
	Status              string   `json:"status"`
	ContactsSynced      int      `json:"contacts_synced"`
	OpportunitiesSynced int      `json:"opportunities_synced"`
	PipelinesSynced     int      `json:"pipelines_synced"`
	Errors              []string `json:"errors,omitempty"`
	StartedAt           string   `json:"started_at"`
	CompletedAt         string   `json:"completed_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func contactToOutput(c *models.Contact) ContactOutput {
	return ContactOutput{
		Key:            c.Key,
		ExternalID:     c.ExternalID,
		Name:           c.Name(),
		Email:          c.Email,
		Phone:          c.Phone,
		City:           c.Address.City,
		State:          c.Address.State,
		Tags:           c.Tags,
		Source:         c.Source,
		Status:         c.Status,
		AssignedTo:     c.AssignedTo,
		LeadScore:      c.LeadScore,
		EstimatedValue: c.EstimatedValue.StringFixed(2),
		LastActivityAt: formatTimePtr(c.LastActivityAt),
		SyncedAt:       formatTime(c.SyncedAt),
	}
}

// opportunityToOutput resolves pipeline and stage names when the pipeline
// has been synced.
func opportunityToOutput(o *models.Opportunity, pipelines map[string]*models.Pipeline) OpportunityOutput {
	out := OpportunityOutput{
		Key:               o.Key,
		ExternalID:        o.ExternalID,
		Name:              o.Name,
		ContactExternalID: o.ContactExternalID,
		PipelineID:        o.PipelineID,
		StageID:           o.StageID,
		Status:            o.Status,
		MonetaryValue:     o.MonetaryValue.StringFixed(2),
		AssignedTo:        o.AssignedTo,
		UpdatedAt:         formatTimePtr(o.ExternalUpdatedAt),
		SyncedAt:          formatTime(o.SyncedAt),
	}
	if p, ok := pipelines[o.PipelineID]; ok {
		out.PipelineName = p.Name
		if o.StageID != "" {
			out.StageName = p.StageName(o.StageID)
		}
	}
	return out
}

func syncRunToOutput(r *models.SyncRun) SyncRunOutput {
	return SyncRunOutput{
		ID:                  r.ID,
		Trigger:             r.Trigger,
		Status:              r.Status,
		ContactsSynced:      r.ContactsSynced,
		OpportunitiesSynced: r.OpportunitiesSynced,
		PipelinesSynced:     r.PipelinesSynced,
		Errors:              r.Errors,
		StartedAt:           formatTime(r.StartedAt),
		CompletedAt:         formatTime(r.CompletedAt),
	}
}
