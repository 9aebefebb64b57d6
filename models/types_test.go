// ABOUTME: Tests for sync data models
// ABOUTME: Validates document keys, credential redaction, filters and run status
package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKeyDeterministic(t *testing.T) {
	a := DocumentKey("user-1", "ext-1")
	b := DocumentKey("user-1", "ext-1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 36)

	assert.NotEqual(t, a, DocumentKey("user-2", "ext-1"))
	assert.NotEqual(t, a, DocumentKey("user-1", "ext-2"))
}

func TestRedactCredential(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"long key", "valid-key-123", "vali****"},
		{"exactly four", "abcd", "****"},
		{"short", "ab", "****"},
		{"padded", "  pit-abcdef  ", "pit-****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactCredential(tt.secret)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "123")
		})
	}
}

func TestSyncOptionsDefaults(t *testing.T) {
	opts := DefaultSyncOptions()
	assert.True(t, opts.SyncContacts)
	assert.True(t, opts.SyncOpportunities)
	assert.False(t, opts.SyncPipelines)
	assert.Equal(t, 100, opts.BatchSize)

	assert.Equal(t, 100, SyncOptions{BatchSize: 0}.Normalized().BatchSize)
	assert.Equal(t, 100, SyncOptions{BatchSize: -3}.Normalized().BatchSize)
	assert.Equal(t, 7, SyncOptions{BatchSize: 7}.Normalized().BatchSize)
}

func TestContactFilterMatches(t *testing.T) {
	c := &Contact{Status: "new", AssignedTo: "alice"}

	assert.True(t, ContactFilter{}.Matches(c))
	assert.True(t, ContactFilter{Status: "new"}.Matches(c))
	assert.False(t, ContactFilter{Status: "won"}.Matches(c))
	assert.True(t, ContactFilter{Status: "new", AssignedTo: "alice"}.Matches(c))
	assert.False(t, ContactFilter{AssignedTo: "bob"}.Matches(c))

	assert.Equal(t, 120, ContactFilter{}.Truncate(120))
	assert.Equal(t, 5, ContactFilter{Limit: 5}.Truncate(120))
	assert.Equal(t, 3, ContactFilter{Limit: 5}.Truncate(3))
	assert.Equal(t, 80, OpportunityFilter{Limit: -1}.Truncate(80))
}

func TestOpportunityFilterMatches(t *testing.T) {
	o := &Opportunity{Status: "open", AssignedTo: "alice", PipelineID: "p1"}

	assert.True(t, OpportunityFilter{PipelineID: "p1"}.Matches(o))
	assert.False(t, OpportunityFilter{PipelineID: "p2"}.Matches(o))
	assert.False(t, OpportunityFilter{Status: "won"}.Matches(o))
}

func TestNewSyncRunStatus(t *testing.T) {
	start := time.Now()

	tests := []struct {
		name   string
		result SyncResult
		want   string
	}{
		{"clean", SyncResult{Success: true, ContactsSynced: 3}, RunStatusSuccess},
		{"partial", SyncResult{ContactsSynced: 4, Errors: []string{"contact c3: bad"}}, RunStatusPartial},
		{"failed", FailedResult(errors.New("not connected")), RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewSyncRun("user-1", TriggerManual, start, tt.result)
			require.NotEmpty(t, run.ID)
			assert.Equal(t, tt.want, run.Status)
			assert.Equal(t, "user-1", run.OwnerUserID)
		})
	}
}

func TestRunIDsSortByTime(t *testing.T) {
	earlier := NewRunID(time.Now().Add(-time.Minute))
	later := NewRunID(time.Now())
	assert.Less(t, earlier, later)
}

func TestBatchKinds(t *testing.T) {
	b := &Batch{OwnerUserID: "u"}
	assert.Empty(t, b.Kinds())

	b.Contacts = append(b.Contacts, Contact{ExternalID: "c1"})
	b.Pipelines = append(b.Pipelines, Pipeline{ExternalID: "p1"})
	assert.Equal(t, []Kind{KindContacts, KindPipelines}, b.Kinds())
	assert.Equal(t, 2, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestSumMonetaryValue(t *testing.T) {
	assert.True(t, SumMonetaryValue(nil).IsZero())

	opps := []Opportunity{
		{MonetaryValue: decimal.RequireFromString("1200.50")},
		{MonetaryValue: decimal.RequireFromString("799.50")},
		{},
	}
	assert.Equal(t, "2000.00", SumMonetaryValue(opps).StringFixed(2))
}
