// ABOUTME: MCP resource handlers exposing synced CRM data
// ABOUTME: Read-only JSON views of contacts, opportunities and pipelines
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "leadsync://"

// resourceLimit caps collection resources.
const resourceLimit = 1000

type ResourceHandlers struct {
	svc  *sync.Service
	sess *sync.Session
}

func NewResourceHandlers(svc *sync.Service, sess *sync.Session) *ResourceHandlers {
	return &ResourceHandlers{svc: svc, sess: sess}
}

// Resources lists the fixed resources the server advertises.
func (h *ResourceHandlers) Resources() []*mcp.Resource {
	return []*mcp.Resource{
		{URI: resourceScheme + "contacts", Name: "contacts", Description: "Synced contacts", MIMEType: "application/json"},
		{URI: resourceScheme + "opportunities", Name: "opportunities", Description: "Synced opportunities", MIMEType: "application/json"},
		{URI: resourceScheme + "pipelines", Name: "pipelines", Description: "Synced pipelines and stages", MIMEType: "application/json"},
	}
}

// ReadResource serves leadsync://contacts[/key], leadsync://opportunities
// and leadsync://pipelines.
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch parts[0] {
	case "contacts":
		if len(parts) == 1 {
			contacts, err := h.svc.GetContacts(ctx, h.sess, models.ContactFilter{Limit: resourceLimit})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch contacts: %w", err)
			}
			out := make([]ContactOutput, len(contacts))
			for i := range contacts {
				out[i] = contactToOutput(&contacts[i])
			}
			return jsonResource(uri, out)
		}
		contact, err := h.svc.GetContact(ctx, h.sess, parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch contact: %w", err)
		}
		if contact == nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return jsonResource(uri, contactToOutput(contact))

	case "opportunities":
		opps, err := h.svc.GetOpportunities(ctx, h.sess, models.OpportunityFilter{Limit: resourceLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch opportunities: %w", err)
		}
		pipelines, err := pipelinesByID(ctx, h.svc, h.sess)
		if err != nil {
			return nil, err
		}
		out := make([]OpportunityOutput, len(opps))
		for i := range opps {
			out[i] = opportunityToOutput(&opps[i], pipelines)
		}
		return jsonResource(uri, out)

	case "pipelines":
		pipelines, err := h.svc.GetPipelines(ctx, h.sess)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pipelines: %w", err)
		}
		return jsonResource(uri, pipelines)

	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{URI: uri, MIMEType: "application/json", Text: string(data)},
	}}, nil
}
