// ABOUTME: Sync pass value objects: options, results, run history and change events
// ABOUTME: Shared by the sync engine and every local store backend
package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultBatchSize is the number of documents per committed batch.
const DefaultBatchSize = 100

type SyncOptions struct {
	SyncContacts      bool `json:"sync_contacts"`
	SyncOpportunities bool `json:"sync_opportunities"`
	SyncPipelines     bool `json:"sync_pipelines"`
	BatchSize         int  `json:"batch_size"`
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		SyncContacts:      true,
		SyncOpportunities: true,
		SyncPipelines:     false,
		BatchSize:         DefaultBatchSize,
	}
}

// Normalized returns a copy with a usable batch size.
func (o SyncOptions) Normalized() SyncOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

type SyncResult struct {
	Success             bool      `json:"success"`
	ContactsSynced      int       `json:"contacts_synced"`
	OpportunitiesSynced int       `json:"opportunities_synced"`
	PipelinesSynced     int       `json:"pipelines_synced"`
	Errors              []string  `json:"errors"`
	CompletedAt         time.Time `json:"completed_at"`
}

// FailedResult builds the result returned when a pass cannot start.
func FailedResult(err error) SyncResult {
	return SyncResult{
		Success:     false,
		Errors:      []string{err.Error()},
		CompletedAt: time.Now(),
	}
}

// Sync trigger values.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Sync run status values.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// Sync state values, kept per owner while a pass runs.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

type SyncRun struct {
	ID                  string    `json:"id"`
	OwnerUserID         string    `json:"owner_user_id"`
	Trigger             string    `json:"trigger"`
	Status              string    `json:"status"`
	ContactsSynced      int       `json:"contacts_synced"`
	OpportunitiesSynced int       `json:"opportunities_synced"`
	PipelinesSynced     int       `json:"pipelines_synced"`
	Errors              []string  `json:"errors,omitempty"`
	StartedAt           time.Time `json:"started_at"`
	CompletedAt         time.Time `json:"completed_at"`
}

// NewRunID returns a lexically sortable run identifier.
func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NewSyncRun records the outcome of one pass.
func NewSyncRun(owner, trigger string, startedAt time.Time, result SyncResult) *SyncRun {
	run := &SyncRun{
		ID:                  NewRunID(startedAt),
		OwnerUserID:         owner,
		Trigger:             trigger,
		ContactsSynced:      result.ContactsSynced,
		OpportunitiesSynced: result.OpportunitiesSynced,
		PipelinesSynced:     result.PipelinesSynced,
		Errors:              result.Errors,
		StartedAt:           startedAt,
		CompletedAt:         result.CompletedAt,
	}

	synced := result.ContactsSynced + result.OpportunitiesSynced + result.PipelinesSynced
	switch {
	case len(result.Errors) == 0:
		run.Status = RunStatusSuccess
	case synced > 0:
		run.Status = RunStatusPartial
	default:
		run.Status = RunStatusFailed
	}
	return run
}

// Kind names a document collection for change notifications.
type Kind string

const (
	KindContacts      Kind = "contacts"
	KindOpportunities Kind = "opportunities"
	KindPipelines     Kind = "pipelines"
	KindConnection    Kind = "connection"
)

type Change struct {
	OwnerUserID string `json:"owner_user_id"`
	Kind        Kind   `json:"kind"`
}

// Batch is a set of writes committed atomically for one owner.
type Batch struct {
	OwnerUserID   string
	Contacts      []Contact
	Opportunities []Opportunity
	Pipelines     []Pipeline
}

func (b *Batch) Len() int {
	return len(b.Contacts) + len(b.Opportunities) + len(b.Pipelines)
}

// Kinds lists the collections the batch touches.
func (b *Batch) Kinds() []Kind {
	var kinds []Kind
	if len(b.Contacts) > 0 {
		kinds = append(kinds, KindContacts)
	}
	if len(b.Opportunities) > 0 {
		kinds = append(kinds, KindOpportunities)
	}
	if len(b.Pipelines) > 0 {
		kinds = append(kinds, KindPipelines)
	}
	return kinds
}

func (b *Batch) Reset() {
	b.Contacts = b.Contacts[:0]
	b.Opportunities = b.Opportunities[:0]
	b.Pipelines = b.Pipelines[:0]
}
