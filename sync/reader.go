// ABOUTME: Owner-scoped queries and live subscriptions over the local store
// ABOUTME: Reads never touch the CRM gateway
package sync

import (
	"context"
	gosync "sync"

	"github.com/harperreed/leadsync/models"
	"go.uber.org/zap"
)

// GetContacts returns the session owner's contacts, newest sync first.
func (s *Service) GetContacts(ctx context.Context, sess *Session, filter models.ContactFilter) ([]models.Contact, error) {
	if !sess.authenticated() {
		return []models.Contact{}, nil
	}
	return s.store.FindContacts(ctx, sess.OwnerUserID, filter)
}

// GetOpportunities returns the session owner's opportunities, newest sync first.
func (s *Service) GetOpportunities(ctx context.Context, sess *Session, filter models.OpportunityFilter) ([]models.Opportunity, error) {
	if !sess.authenticated() {
		return []models.Opportunity{}, nil
	}
	return s.store.FindOpportunities(ctx, sess.OwnerUserID, filter)
}

// GetContact looks up one contact by document key. Contacts of other owners
// are reported as absent.
func (s *Service) GetContact(ctx context.Context, sess *Session, key string) (*models.Contact, error) {
	if !sess.authenticated() {
		return nil, nil
	}
	c, err := s.store.GetContact(ctx, key)
	if err != nil || c == nil || c.OwnerUserID != sess.OwnerUserID {
		return nil, err
	}
	return c, nil
}

// GetOpportunity looks up one opportunity by document key.
func (s *Service) GetOpportunity(ctx context.Context, sess *Session, key string) (*models.Opportunity, error) {
	if !sess.authenticated() {
		return nil, nil
	}
	o, err := s.store.GetOpportunity(ctx, key)
	if err != nil || o == nil || o.OwnerUserID != sess.OwnerUserID {
		return nil, err
	}
	return o, nil
}

func (s *Service) GetPipelines(ctx context.Context, sess *Session) ([]models.Pipeline, error) {
	if !sess.authenticated() {
		return []models.Pipeline{}, nil
	}
	return s.store.ListPipelines(ctx, sess.OwnerUserID)
}

// ListSyncRuns returns the most recent passes, newest first.
func (s *Service) ListSyncRuns(ctx context.Context, sess *Session, limit int) ([]models.SyncRun, error) {
	if !sess.authenticated() {
		return []models.SyncRun{}, nil
	}
	return s.store.ListSyncRuns(ctx, sess.OwnerUserID, limit)
}

// SubscribeToContacts calls cb with the full filtered result set now and
// again after every change to the owner's contacts. The returned function
// unsubscribes and waits for any delivery in progress; it must not be called
// from inside cb.
func (s *Service) SubscribeToContacts(ctx context.Context, sess *Session, filter models.ContactFilter, cb func([]models.Contact)) func() {
	if !sess.authenticated() {
		return func() {}
	}
	owner := sess.OwnerUserID
	return subscribe(ctx, s, owner, models.KindContacts, func(ctx context.Context) ([]models.Contact, error) {
		return s.store.FindContacts(ctx, owner, filter)
	}, cb)
}

// SubscribeToOpportunities is SubscribeToContacts for opportunities.
func (s *Service) SubscribeToOpportunities(ctx context.Context, sess *Session, filter models.OpportunityFilter, cb func([]models.Opportunity)) func() {
	if !sess.authenticated() {
		return func() {}
	}
	owner := sess.OwnerUserID
	return subscribe(ctx, s, owner, models.KindOpportunities, func(ctx context.Context) ([]models.Opportunity, error) {
		return s.store.FindOpportunities(ctx, owner, filter)
	}, cb)
}

func subscribe[T any](ctx context.Context, s *Service, owner string, kind models.Kind, query func(context.Context) ([]T, error), cb func([]T)) func() {
	changes, stopFeed := s.store.Subscribe(owner, kind)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	log := s.logger.With(zap.String("owner", owner), zap.String("kind", string(kind)))

	deliver := func() {
		items, err := query(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("subscription query failed", zap.Error(err))
			}
			return
		}
		cb(items)
	}

	go func() {
		defer close(done)
		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	var once gosync.Once
	return func() {
		once.Do(func() {
			cancel()
			stopFeed()
			<-done
		})
	}
}
