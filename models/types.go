// ABOUTME: Data models for synchronized CRM entities
// ABOUTME: Defines Connection, Contact, Opportunity, Pipeline and their query filters
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// keyNamespace seeds DocumentKey. Changing it re-keys every stored document.
var keyNamespace = uuid.MustParse("6f1c2d9e-4a57-5b0e-9c3d-2e8a41f7b6d0")

// DocumentKey returns the deterministic local key for an external record.
func DocumentKey(ownerUserID, externalID string) string {
	return uuid.NewSHA1(keyNamespace, []byte(ownerUserID+"/"+externalID)).String()
}

// RedactCredential keeps a short prefix of a secret and masks the rest.
func RedactCredential(secret string) string {
	const keep = 4
	secret = strings.TrimSpace(secret)
	if len(secret) <= keep {
		return "****"
	}
	return secret[:keep] + "****"
}

type Connection struct {
	OwnerUserID    string     `json:"owner_user_id"`
	CredentialHint string     `json:"credential_hint,omitempty"`
	LocationID     string     `json:"location_id,omitempty"`
	ConnectedAt    time.Time  `json:"connected_at"`
	Active         bool       `json:"active"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Address struct {
	Line       string `json:"line,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero reports whether no address component is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

type Contact struct {
	Key               string          `json:"key"`
	ExternalID        string          `json:"external_id"`
	OwnerUserID       string          `json:"owner_user_id"`
	FirstName         string          `json:"first_name,omitempty"`
	LastName          string          `json:"last_name,omitempty"`
	Email             string          `json:"email,omitempty"`
	Phone             string          `json:"phone,omitempty"`
	Address           Address         `json:"address"`
	Tags              []string        `json:"tags,omitempty"`
	CustomFields      map[string]any  `json:"custom_fields,omitempty"`
	ExternalCreatedAt *time.Time      `json:"external_created_at,omitempty"`
	LastActivityAt    *time.Time      `json:"last_activity_at,omitempty"`
	Source            string          `json:"source"`
	Status            string          `json:"status"`
	AssignedTo        string          `json:"assigned_to"`
	LeadScore         int             `json:"lead_score"`
	EstimatedValue    decimal.Decimal `json:"estimated_value"`
	SyncedAt          time.Time       `json:"synced_at"`
}

// Name joins first and last name.
func (c *Contact) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Opportunity struct {
	Key               string          `json:"key"`
	ExternalID        string          `json:"external_id"`
	OwnerUserID       string          `json:"owner_user_id"`
	Name              string          `json:"name"`
	ContactExternalID string          `json:"contact_external_id,omitempty"`
	PipelineID        string          `json:"pipeline_id,omitempty"`
	StageID           string          `json:"stage_id,omitempty"`
	Status            string          `json:"status"`
	MonetaryValue     decimal.Decimal `json:"monetary_value"`
	AssignedTo        string          `json:"assigned_to"`
	ExternalCreatedAt *time.Time      `json:"external_created_at,omitempty"`
	ExternalUpdatedAt *time.Time      `json:"external_updated_at,omitempty"`
	SyncedAt          time.Time       `json:"synced_at"`
}

type Stage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Pipeline struct {
	Key         string    `json:"key"`
	ExternalID  string    `json:"external_id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	Stages      []Stage   `json:"stages,omitempty"`
	SyncedAt    time.Time `json:"synced_at"`
}

// StageName resolves a stage id, falling back to the id itself.
func (p *Pipeline) StageName(id string) string {
	for _, s := range p.Stages {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}

// DefaultQueryLimit is the result count the CLI and MCP tools ask for when
// the caller gives none. A filter with no Limit is unbounded.
const DefaultQueryLimit = 50

type ContactFilter struct {
	Status     string `json:"status,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Matches reports whether c passes the equality filters (Limit is ignored).
func (f ContactFilter) Matches(c *Contact) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.AssignedTo != "" && c.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

// Truncate applies Limit to an already ordered result. Zero or less keeps
// everything.
func (f ContactFilter) Truncate(n int) int {
	if f.Limit > 0 && n > f.Limit {
		return f.Limit
	}
	return n
}

type OpportunityFilter struct {
	Status     string `json:"status,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	PipelineID string `json:"pipeline_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func (f OpportunityFilter) Matches(o *Opportunity) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.AssignedTo != "" && o.AssignedTo != f.AssignedTo {
		return false
	}
	if f.PipelineID != "" && o.PipelineID != f.PipelineID {
		return false
	}
	return true
}

func (f OpportunityFilter) Truncate(n int) int {
	if f.Limit > 0 && n > f.Limit {
		return f.Limit
	}
	return n
}

// SumMonetaryValue totals the value of opps.
func SumMonetaryValue(opps []Opportunity) decimal.Decimal {
	total := decimal.Zero
	for i := range opps {
		total = total.Add(opps[i].MonetaryValue)
	}
	return total
}
