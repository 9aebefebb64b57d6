// ABOUTME: SQLite-backed local store used by the sync service
// ABOUTME: Wraps the table functions with batch transactions and change notifications
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/changefeed"
	"github.com/harperreed/leadsync/models"
	"go.uber.org/zap"
)

type Store struct {
	db     *sql.DB
	feed   changefeed.Feed
	logger *zap.Logger
}

// NewStore wraps an open database. A nil feed gets an in-process hub.
func NewStore(database *sql.DB, feed changefeed.Feed, logger *zap.Logger) *Store {
	if feed == nil {
		feed = changefeed.NewHub()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: database, feed: feed, logger: logger}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) publish(ctx context.Context, owner string, kinds ...models.Kind) {
	for _, kind := range kinds {
		if err := s.feed.Publish(ctx, models.Change{OwnerUserID: owner, Kind: kind}); err != nil {
			s.logger.Warn("failed to publish change",
				zap.String("owner", owner), zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

func (s *Store) GetConnection(ctx context.Context, owner string) (*models.Connection, error) {
	return GetConnection(ctx, s.db, owner)
}

func (s *Store) SaveConnection(ctx context.Context, conn *models.Connection) error {
	if err := SaveConnection(ctx, s.db, conn); err != nil {
		return err
	}
	s.publish(ctx, conn.OwnerUserID, models.KindConnection)
	return nil
}

func (s *Store) TouchLastSync(ctx context.Context, owner string, at time.Time) error {
	if err := TouchLastSync(ctx, s.db, owner, at); err != nil {
		return err
	}
	s.publish(ctx, owner, models.KindConnection)
	return nil
}

// CommitBatch writes every document in the batch inside one transaction.
func (s *Store) CommitBatch(ctx context.Context, batch *models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}

	if err := writeBatch(ctx, tx, batch); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.publish(ctx, batch.OwnerUserID, batch.Kinds()...)
	return nil
}

func writeBatch(ctx context.Context, tx *sql.Tx, batch *models.Batch) error {
	for i := range batch.Contacts {
		if err := UpsertContact(ctx, tx, &batch.Contacts[i]); err != nil {
			return err
		}
	}
	for i := range batch.Opportunities {
		if err := UpsertOpportunity(ctx, tx, &batch.Opportunities[i]); err != nil {
			return err
		}
	}
	for i := range batch.Pipelines {
		if err := UpsertPipeline(ctx, tx, &batch.Pipelines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetContact(ctx context.Context, key string) (*models.Contact, error) {
	return GetContact(ctx, s.db, key)
}

func (s *Store) DeleteContact(ctx context.Context, owner, key string) error {
	if err := DeleteContact(ctx, s.db, key); err != nil {
		return err
	}
	s.publish(ctx, owner, models.KindContacts)
	return nil
}

func (s *Store) GetOpportunity(ctx context.Context, key string) (*models.Opportunity, error) {
	return GetOpportunity(ctx, s.db, key)
}

func (s *Store) DeleteOpportunity(ctx context.Context, owner, key string) error {
	if err := DeleteOpportunity(ctx, s.db, key); err != nil {
		return err
	}
	s.publish(ctx, owner, models.KindOpportunities)
	return nil
}

func (s *Store) FindContacts(ctx context.Context, owner string, filter models.ContactFilter) ([]models.Contact, error) {
	return FindContacts(ctx, s.db, owner, filter)
}

func (s *Store) FindOpportunities(ctx context.Context, owner string, filter models.OpportunityFilter) ([]models.Opportunity, error) {
	return FindOpportunities(ctx, s.db, owner, filter)
}

func (s *Store) ListPipelines(ctx context.Context, owner string) ([]models.Pipeline, error) {
	return ListPipelines(ctx, s.db, owner)
}

func (s *Store) CountContacts(ctx context.Context, owner string) (int, error) {
	return CountContacts(ctx, s.db, owner)
}

func (s *Store) CountOpportunities(ctx context.Context, owner string) (int, error) {
	return CountOpportunities(ctx, s.db, owner)
}

func (s *Store) SetSyncStatus(ctx context.Context, owner, status, message string) error {
	var msg *string
	if message != "" {
		msg = &message
	}
	return UpdateSyncStatus(ctx, s.db, owner, status, msg)
}

func (s *Store) RecordSyncRun(ctx context.Context, run *models.SyncRun) error {
	return CreateSyncRun(ctx, s.db, run)
}

func (s *Store) ListSyncRuns(ctx context.Context, owner string, limit int) ([]models.SyncRun, error) {
	return ListSyncRuns(ctx, s.db, owner, limit)
}

func (s *Store) Subscribe(owner string, kind models.Kind) (<-chan models.Change, func()) {
	return s.feed.Subscribe(owner, kind)
}

// Close ends subscriptions and closes the database.
func (s *Store) Close() error {
	_ = s.feed.Close()
	return s.db.Close()
}
