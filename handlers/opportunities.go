// ABOUTME: Opportunity MCP tool handler
// ABOUTME: Lists synced opportunities with pipeline and stage names resolved
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type OpportunityHandlers struct {
	svc  *sync.Service
	sess *sync.Session
}

func NewOpportunityHandlers(svc *sync.Service, sess *sync.Session) *OpportunityHandlers {
	return &OpportunityHandlers{svc: svc, sess: sess}
}

type ListOpportunitiesInput struct {
	Status     string `json:"status,omitempty" jsonschema:"Filter by status (open, won, lost, abandoned)"`
	AssignedTo string `json:"assigned_to,omitempty" jsonschema:"Filter by assigned user id"`
	PipelineID string `json:"pipeline_id,omitempty" jsonschema:"Filter by pipeline id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50)"`
}

type ListOpportunitiesOutput struct {
	Opportunities []OpportunityOutput `json:"opportunities"`
	Count         int                 `json:"count"`
	TotalValue    string              `json:"total_value"`
}

func (h *OpportunityHandlers) ListOpportunities(ctx context.Context, _ *mcp.CallToolRequest, input ListOpportunitiesInput) (*mcp.CallToolResult, ListOpportunitiesOutput, error) {
	if input.Limit < 0 {
		return nil, ListOpportunitiesOutput{}, fmt.Errorf("limit must not be negative")
	}
	if input.Limit == 0 {
		input.Limit = models.DefaultQueryLimit
	}

	opps, err := h.svc.GetOpportunities(ctx, h.sess, models.OpportunityFilter{
		Status:     input.Status,
		AssignedTo: input.AssignedTo,
		PipelineID: input.PipelineID,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, ListOpportunitiesOutput{}, fmt.Errorf("failed to list opportunities: %w", err)
	}

	pipelines, err := pipelinesByID(ctx, h.svc, h.sess)
	if err != nil {
		return nil, ListOpportunitiesOutput{}, err
	}

	out := ListOpportunitiesOutput{Opportunities: make([]OpportunityOutput, len(opps))}
	total := models.SumMonetaryValue(opps)
	for i := range opps {
		out.Opportunities[i] = opportunityToOutput(&opps[i], pipelines)
	}
	out.Count = len(opps)
	out.TotalValue = total.StringFixed(2)
	return nil, out, nil
}

func pipelinesByID(ctx context.Context, svc *sync.Service, sess *sync.Session) (map[string]*models.Pipeline, error) {
	pipelines, err := svc.GetPipelines(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	byID := make(map[string]*models.Pipeline, len(pipelines))
	for i := range pipelines {
		byID[pipelines[i].ExternalID] = &pipelines[i]
	}
	return byID, nil
}
