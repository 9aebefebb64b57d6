// ABOUTME: Contact MCP tool handlers
// ABOUTME: Implements list_contacts and get_contact over the synced store
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ContactHandlers struct {
	svc  *sync.Service
	sess *sync.Session
}

func NewContactHandlers(svc *sync.Service, sess *sync.Session) *ContactHandlers {
	return &ContactHandlers{svc: svc, sess: sess}
}

type ListContactsInput struct {
	Status     string `json:"status,omitempty" jsonschema:"Filter by lead status (e.g. new)"`
	AssignedTo string `json:"assigned_to,omitempty" jsonschema:"Filter by assigned user id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50)"`
}

type ListContactsOutput struct {
	Contacts []ContactOutput `json:"contacts"`
	Count    int             `json:"count"`
}

func (h *ContactHandlers) ListContacts(ctx context.Context, _ *mcp.CallToolRequest, input ListContactsInput) (*mcp.CallToolResult, ListContactsOutput, error) {
	if input.Limit < 0 {
		return nil, ListContactsOutput{}, fmt.Errorf("limit must not be negative")
	}
	if input.Limit == 0 {
		input.Limit = models.DefaultQueryLimit
	}

	contacts, err := h.svc.GetContacts(ctx, h.sess, models.ContactFilter{
		Status:     input.Status,
		AssignedTo: input.AssignedTo,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, ListContactsOutput{}, fmt.Errorf("failed to list contacts: %w", err)
	}

	result := make([]ContactOutput, len(contacts))
	for i := range contacts {
		result[i] = contactToOutput(&contacts[i])
	}
	return nil, ListContactsOutput{Contacts: result, Count: len(result)}, nil
}

type GetContactInput struct {
	Key string `json:"key" jsonschema:"Local contact key (required)"`
}

func (h *ContactHandlers) GetContact(ctx context.Context, _ *mcp.CallToolRequest, input GetContactInput) (*mcp.CallToolResult, ContactOutput, error) {
	if input.Key == "" {
		return nil, ContactOutput{}, fmt.Errorf("key is required")
	}

	contact, err := h.svc.GetContact(ctx, h.sess, input.Key)
	if err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to get contact: %w", err)
	}
	if contact == nil {
		return nil, ContactOutput{}, fmt.Errorf("contact not found: %s", input.Key)
	}
	return nil, contactToOutput(contact), nil
}
