// ABOUTME: Collaborator interfaces for the sync service
// ABOUTME: Local store, external CRM gateway and the factory that creates gateways
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/models"
)

var (
	ErrNotAuthenticated = errors.New("no authenticated user")
	ErrNotConnected     = errors.New("CRM is not connected")
	ErrSyncInProgress   = errors.New("a sync is already in progress")
)

// Store is the local document store. db.Store and kvstore.Store implement it.
type Store interface {
	GetConnection(ctx context.Context, owner string) (*models.Connection, error)
	SaveConnection(ctx context.Context, conn *models.Connection) error
	TouchLastSync(ctx context.Context, owner string, at time.Time) error

	CommitBatch(ctx context.Context, batch *models.Batch) error

	GetContact(ctx context.Context, key string) (*models.Contact, error)
	GetOpportunity(ctx context.Context, key string) (*models.Opportunity, error)
	FindContacts(ctx context.Context, owner string, filter models.ContactFilter) ([]models.Contact, error)
	FindOpportunities(ctx context.Context, owner string, filter models.OpportunityFilter) ([]models.Opportunity, error)
	ListPipelines(ctx context.Context, owner string) ([]models.Pipeline, error)
	CountContacts(ctx context.Context, owner string) (int, error)
	CountOpportunities(ctx context.Context, owner string) (int, error)

	SetSyncStatus(ctx context.Context, owner, status, message string) error
	RecordSyncRun(ctx context.Context, run *models.SyncRun) error
	ListSyncRuns(ctx context.Context, owner string, limit int) ([]models.SyncRun, error)

	Subscribe(owner string, kind models.Kind) (<-chan models.Change, func())
}

// Gateway is the external CRM as seen by the sync engine. Paging is the
// gateway's concern; each List call returns the full record set.
type Gateway interface {
	Connect(ctx context.Context, apiKey, locationID string) error
	ListContacts(ctx context.Context) ([]gateway.Contact, error)
	ListOpportunities(ctx context.Context) ([]gateway.Opportunity, error)
}

// PipelineLister is an optional Gateway capability.
type PipelineLister interface {
	ListPipelines(ctx context.Context) ([]gateway.Pipeline, error)
}

// GatewayFactory returns a fresh, unconnected gateway for one Connect attempt.
type GatewayFactory func() (Gateway, error)

// HTTPGatewayFactory builds gateway clients from b.
func HTTPGatewayFactory(b *gateway.ClientBuilder) GatewayFactory {
	return func() (Gateway, error) {
		c, err := b.Build()
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
