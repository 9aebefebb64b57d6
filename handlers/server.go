// ABOUTME: Builds the MCP server with every leadsync tool and resource
// ABOUTME: One server serves one session, i.e. one local owner
package handlers

import (
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func NewServer(svc *sync.Service, sess *sync.Session, defaults models.SyncOptions, version string) *mcp.Server {
	syncHandlers := NewSyncHandlers(svc, sess, defaults)
	contactHandlers := NewContactHandlers(svc, sess)
	opportunityHandlers := NewOpportunityHandlers(svc, sess)
	resourceHandlers := NewResourceHandlers(svc, sess)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadsync",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Show CRM connection state, last sync time and local document counts",
	}, syncHandlers.SyncStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_now",
		Description: "Pull contacts and opportunities from the CRM into the local store now",
	}, syncHandlers.SyncNow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sync_runs",
		Description: "List recent sync runs, newest first",
	}, syncHandlers.ListSyncRuns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_contacts",
		Description: "List synced contacts, most recently synced first, with optional status and assignee filters",
	}, contactHandlers.ListContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contact",
		Description: "Get one synced contact by its local key",
	}, contactHandlers.GetContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_opportunities",
		Description: "List synced opportunities with optional status, assignee and pipeline filters",
	}, opportunityHandlers.ListOpportunities)

	for _, r := range resourceHandlers.Resources() {
		server.AddResource(r, resourceHandlers.ReadResource)
	}

	return server
}
