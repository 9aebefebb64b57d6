// ABOUTME: Sync MCP tool handlers
// ABOUTME: Implements sync_status, sync_now and list_sync_runs
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type SyncHandlers struct {
	svc  *sync.Service
	sess *sync.Session
	opts models.SyncOptions
}

// NewSyncHandlers uses defaults as the base options for sync_now.
func NewSyncHandlers(svc *sync.Service, sess *sync.Session, defaults models.SyncOptions) *SyncHandlers {
	return &SyncHandlers{svc: svc, sess: sess, opts: defaults}
}

type SyncStatusInput struct{}

type SyncStatusOutput struct {
	Connected        bool   `json:"connected"`
	LastSync         string `json:"last_sync,omitempty"`
	ContactCount     int    `json:"contact_count"`
	OpportunityCount int    `json:"opportunity_count"`
	Syncing          bool   `json:"syncing"`
	AutoSync         bool   `json:"auto_sync"`
}

func (h *SyncHandlers) SyncStatus(ctx context.Context, _ *mcp.CallToolRequest, _ SyncStatusInput) (*mcp.CallToolResult, SyncStatusOutput, error) {
	status := h.svc.GetStatus(ctx, h.sess)
	return nil, SyncStatusOutput{
		Connected:        status.IsConnected,
		LastSync:         formatTimePtr(status.LastSync),
		ContactCount:     status.ContactCount,
		OpportunityCount: status.OpportunityCount,
		Syncing:          h.sess != nil && h.sess.Syncing(),
		AutoSync:         h.sess != nil && h.sess.AutoSync() != nil,
	}, nil
}

type SyncNowInput struct {
	SkipContacts      bool `json:"skip_contacts,omitempty" jsonschema:"Do not sync contacts"`
	SkipOpportunities bool `json:"skip_opportunities,omitempty" jsonschema:"Do not sync opportunities"`
	Pipelines         bool `json:"pipelines,omitempty" jsonschema:"Also sync pipeline definitions"`
	BatchSize         int  `json:"batch_size,omitempty" jsonschema:"Documents per committed batch (default 100)"`
}

type SyncNowOutput struct {
	Success             bool     `json:"success"`
	ContactsSynced      int      `json:"contacts_synced"`
	OpportunitiesSynced int      `json:"opportunities_synced"`
	PipelinesSynced     int      `json:"pipelines_synced"`
	Errors              []string `json:"errors,omitempty"`
	CompletedAt         string   `json:"completed_at"`
}

// SyncNow runs a pass and reports its result. Failures are part of the
// output, not tool errors.
func (h *SyncHandlers) SyncNow(ctx context.Context, _ *mcp.CallToolRequest, input SyncNowInput) (*mcp.CallToolResult, SyncNowOutput, error) {
	if input.BatchSize < 0 {
		return nil, SyncNowOutput{}, fmt.Errorf("batch_size must not be negative")
	}

	opts := h.opts
	if input.SkipContacts {
		opts.SyncContacts = false
	}
	if input.SkipOpportunities {
		opts.SyncOpportunities = false
	}
	if input.Pipelines {
		opts.SyncPipelines = true
	}
	if input.BatchSize > 0 {
		opts.BatchSize = input.BatchSize
	}

	result := h.svc.SyncAll(ctx, h.sess, opts)
	return nil, SyncNowOutput{
		Success:             result.Success,
		ContactsSynced:      result.ContactsSynced,
		OpportunitiesSynced: result.OpportunitiesSynced,
		PipelinesSynced:     result.PipelinesSynced,
		Errors:              result.Errors,
		CompletedAt:         formatTime(result.CompletedAt),
	}, nil
}

type ListSyncRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs, newest first (default 10)"`
}

type ListSyncRunsOutput struct {
	Runs []SyncRunOutput `json:"runs"`
}

func (h *SyncHandlers) ListSyncRuns(ctx context.Context, _ *mcp.CallToolRequest, input ListSyncRunsInput) (*mcp.CallToolResult, ListSyncRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	runs, err := h.svc.ListSyncRuns(ctx, h.sess, limit)
	if err != nil {
		return nil, ListSyncRunsOutput{}, fmt.Errorf("failed to list sync runs: %w", err)
	}

	out := ListSyncRunsOutput{Runs: make([]SyncRunOutput, len(runs))}
	for i := range runs {
		out.Runs[i] = syncRunToOutput(&runs[i])
	}
	return nil, out, nil
}
