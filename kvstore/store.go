// ABOUTME: Document store over a key/value engine, used by the sync service
// ABOUTME: JSON documents keyed by collection and owner with in-memory filtering
package kvstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/leadsync/changefeed"
	"github.com/harperreed/leadsync/models"
	"go.uber.org/zap"
)

// Store keeps documents under "<collection>/<owner>/<key>". A secondary
// "index/<collection>/<key>" entry maps a document key back to its owner so
// lookups by key don't need a full scan.
type Store struct {
	kv     KV
	feed   changefeed.Feed
	logger *zap.Logger
	mu     sync.Mutex
}

// SyncState mirrors the SQLite sync_state row.
type SyncState struct {
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewStore(engine KV, feed changefeed.Feed, logger *zap.Logger) *Store {
	if feed == nil {
		feed = changefeed.NewHub()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: engine, feed: feed, logger: logger}
}

func ownerPart(owner string) string {
	return url.PathEscape(owner)
}

func collectionPrefix(kind models.Kind, owner string) []byte {
	return []byte(string(kind) + "/" + ownerPart(owner) + "/")
}

func documentKey(kind models.Kind, owner, key string) []byte {
	return append(collectionPrefix(kind, owner), key...)
}

func indexKey(kind models.Kind, key string) []byte {
	return []byte("index/" + string(kind) + "/" + key)
}

func connectionKey(owner string) []byte {
	return []byte("connection/" + ownerPart(owner))
}

func stateKey(owner string) []byte {
	return []byte("state/" + ownerPart(owner))
}

func runPrefix(owner string) []byte {
	return []byte("runs/" + ownerPart(owner) + "/")
}

func (s *Store) publish(ctx context.Context, owner string, kinds ...models.Kind) {
	for _, kind := range kinds {
		if err := s.feed.Publish(ctx, models.Change{OwnerUserID: owner, Kind: kind}); err != nil {
			s.logger.Warn("failed to publish change",
				zap.String("owner", owner), zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

func (s *Store) getJSON(key []byte, v any) (bool, error) {
	raw, err := s.kv.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func putOp(key []byte, v any) (Op, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Op{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return Op{Key: key, Value: raw}, nil
}

func (s *Store) GetConnection(_ context.Context, owner string) (*models.Connection, error) {
	var conn models.Connection
	found, err := s.getJSON(connectionKey(owner), &conn)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &conn, nil
}

func (s *Store) SaveConnection(ctx context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveConnection(ctx, conn)
}

// saveConnection writes conn. Callers hold s.mu.
func (s *Store) saveConnection(ctx context.Context, conn *models.Connection) error {
	conn.UpdatedAt = time.Now().UTC()
	op, err := putOp(connectionKey(conn.OwnerUserID), conn)
	if err != nil {
		return err
	}
	if err := s.kv.Apply([]Op{op}); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	s.publish(ctx, conn.OwnerUserID, models.KindConnection)
	return nil
}

func (s *Store) TouchLastSync(ctx context.Context, owner string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.GetConnection(ctx, owner)
	if err != nil {
		return err
	}
	if conn == nil {
		return fmt.Errorf("no connection for owner %s", owner)
	}
	at = at.UTC()
	conn.LastSyncAt = &at
	return s.saveConnection(ctx, conn)
}

// CommitBatch writes the batch through a single Apply.
func (s *Store) CommitBatch(ctx context.Context, batch *models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	ops := make([]Op, 0, batch.Len()*2)
	add := func(kind models.Kind, key string, doc any) error {
		op, err := putOp(documentKey(kind, batch.OwnerUserID, key), doc)
		if err != nil {
			return err
		}
		ops = append(ops, op, Op{Key: indexKey(kind, key), Value: []byte(batch.OwnerUserID)})
		return nil
	}

	for i := range batch.Contacts {
		if err := add(models.KindContacts, batch.Contacts[i].Key, &batch.Contacts[i]); err != nil {
			return err
		}
	}
	for i := range batch.Opportunities {
		if err := add(models.KindOpportunities, batch.Opportunities[i].Key, &batch.Opportunities[i]); err != nil {
			return err
		}
	}
	for i := range batch.Pipelines {
		if err := add(models.KindPipelines, batch.Pipelines[i].Key, &batch.Pipelines[i]); err != nil {
			return err
		}
	}

	if err := s.kv.Apply(ops); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.publish(ctx, batch.OwnerUserID, batch.Kinds()...)
	return nil
}

func (s *Store) ownerOf(kind models.Kind, key string) (string, bool, error) {
	raw, err := s.kv.Get(indexKey(kind, key))
	if err != nil {
		return "", false, err
	}
	if raw == nil {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (s *Store) GetContact(_ context.Context, key string) (*models.Contact, error) {
	owner, ok, err := s.ownerOf(models.KindContacts, key)
	if err != nil || !ok {
		return nil, err
	}

	var c models.Contact
	found, err := s.getJSON(documentKey(models.KindContacts, owner, key), &c)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) GetOpportunity(_ context.Context, key string) (*models.Opportunity, error) {
	owner, ok, err := s.ownerOf(models.KindOpportunities, key)
	if err != nil || !ok {
		return nil, err
	}

	var o models.Opportunity
	found, err := s.getJSON(documentKey(models.KindOpportunities, owner, key), &o)
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) deleteDocument(ctx context.Context, kind models.Kind, owner, key string) error {
	err := s.kv.Apply([]Op{
		{Key: documentKey(kind, owner, key)},
		{Key: indexKey(kind, key)},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", kind, err)
	}
	s.publish(ctx, owner, kind)
	return nil
}

func (s *Store) DeleteContact(ctx context.Context, owner, key string) error {
	return s.deleteDocument(ctx, models.KindContacts, owner, key)
}

func (s *Store) DeleteOpportunity(ctx context.Context, owner, key string) error {
	return s.deleteDocument(ctx, models.KindOpportunities, owner, key)
}

func (s *Store) FindContacts(_ context.Context, owner string, filter models.ContactFilter) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := s.kv.Scan(collectionPrefix(models.KindContacts, owner), func(key, value []byte) error {
		var c models.Contact
		if err := json.Unmarshal(value, &c); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		if filter.Matches(&c) {
			contacts = append(contacts, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if !contacts[i].SyncedAt.Equal(contacts[j].SyncedAt) {
			return contacts[i].SyncedAt.After(contacts[j].SyncedAt)
		}
		return contacts[i].ExternalID < contacts[j].ExternalID
	})

	contacts = contacts[:filter.Truncate(len(contacts))]
	return contacts, nil
}

func (s *Store) FindOpportunities(_ context.Context, owner string, filter models.OpportunityFilter) ([]models.Opportunity, error) {
	opportunities := []models.Opportunity{}
	err := s.kv.Scan(collectionPrefix(models.KindOpportunities, owner), func(key, value []byte) error {
		var o models.Opportunity
		if err := json.Unmarshal(value, &o); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		if filter.Matches(&o) {
			opportunities = append(opportunities, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		if !opportunities[i].SyncedAt.Equal(opportunities[j].SyncedAt) {
			return opportunities[i].SyncedAt.After(opportunities[j].SyncedAt)
		}
		return opportunities[i].ExternalID < opportunities[j].ExternalID
	})

	opportunities = opportunities[:filter.Truncate(len(opportunities))]
	return opportunities, nil
}

func (s *Store) ListPipelines(_ context.Context, owner string) ([]models.Pipeline, error) {
	pipelines := []models.Pipeline{}
	err := s.kv.Scan(collectionPrefix(models.KindPipelines, owner), func(key, value []byte) error {
		var p models.Pipeline
		if err := json.Unmarshal(value, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		pipelines = append(pipelines, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}

	sort.SliceStable(pipelines, func(i, j int) bool { return pipelines[i].Name < pipelines[j].Name })
	return pipelines, nil
}

func (s *Store) count(kind models.Kind, owner string) (int, error) {
	n := 0
	err := s.kv.Scan(collectionPrefix(kind, owner), func(_, _ []byte) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

func (s *Store) CountContacts(_ context.Context, owner string) (int, error) {
	return s.count(models.KindContacts, owner)
}

func (s *Store) CountOpportunities(_ context.Context, owner string) (int, error) {
	return s.count(models.KindOpportunities, owner)
}

func (s *Store) SetSyncStatus(_ context.Context, owner, status, message string) error {
	op, err := putOp(stateKey(owner), SyncState{Status: status, ErrorMessage: message, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.kv.Apply([]Op{op}); err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// GetSyncState returns nil, nil before the first pass.
func (s *Store) GetSyncState(owner string) (*SyncState, error) {
	var state SyncState
	found, err := s.getJSON(stateKey(owner), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (s *Store) RecordSyncRun(_ context.Context, run *models.SyncRun) error {
	op, err := putOp(append(runPrefix(run.OwnerUserID), run.ID...), run)
	if err != nil {
		return err
	}
	if err := s.kv.Apply([]Op{op}); err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns runs newest first; ULID keys scan in time order.
func (s *Store) ListSyncRuns(_ context.Context, owner string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}

	var runs []models.SyncRun
	err := s.kv.Scan(runPrefix(owner), func(key, value []byte) error {
		var run models.SyncRun
		if err := json.Unmarshal(value, &run); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	return runs, nil
}

func (s *Store) Subscribe(owner string, kind models.Kind) (<-chan models.Change, func()) {
	return s.feed.Subscribe(owner, kind)
}

func (s *Store) Close() error {
	_ = s.feed.Close()
	return s.kv.Close()
}
