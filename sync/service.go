// ABOUTME: Sync service: connection management and status reporting
// ABOUTME: Operations take an explicit Session instead of holding user state
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadsync/jobs"
	"github.com/harperreed/leadsync/lock"
	"github.com/harperreed/leadsync/models"
	"go.uber.org/zap"
)

// Service connects users to the CRM and runs sync passes into the local
// store. It holds no per-user state.
type Service struct {
	store      Store
	newGateway GatewayFactory
	locker     lock.Locker
	scheduler  *jobs.Scheduler
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Service)

// WithLocker guards passes across processes, e.g. with lock.Redis.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithScheduler(sch *jobs.Scheduler) Option {
	return func(s *Service) { s.scheduler = sch }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, factory GatewayFactory, opts ...Option) *Service {
	s := &Service{
		store:      store,
		newGateway: factory,
		locker:     lock.NewLocal(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.scheduler == nil {
		s.scheduler = jobs.NewScheduler(s.logger)
	}
	return s
}

// Scheduler returns the scheduler auto-sync jobs are armed on.
func (s *Service) Scheduler() *jobs.Scheduler {
	return s.scheduler
}

// Status is the connection summary shown to the user.
type Status struct {
	LastSync         *time.Time `json:"last_sync"`
	IsConnected      bool       `json:"is_connected"`
	ContactCount     int        `json:"contact_count"`
	OpportunityCount int        `json:"opportunity_count"`
}

// Connect validates apiKey against the CRM and records the connection.
// Every failure is reported as false and logged; sess and the store are only
// changed on success.
func (s *Service) Connect(ctx context.Context, sess *Session, apiKey, locationID string) bool {
	if !sess.authenticated() {
		s.logger.Warn("connect rejected", zap.Error(ErrNotAuthenticated))
		return false
	}
	owner := sess.OwnerUserID
	log := s.logger.With(zap.String("owner", owner))

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		log.Warn("connect rejected: empty api key")
		return false
	}

	gw, err := s.dialGateway(ctx, apiKey, locationID)
	if err != nil {
		log.Warn("CRM rejected connection", zap.Error(err))
		return false
	}

	previous, err := s.store.GetConnection(ctx, owner)
	if err != nil {
		log.Error("failed to read connection", zap.Error(err))
		return false
	}

	now := s.now()
	conn := &models.Connection{
		OwnerUserID:    owner,
		CredentialHint: models.RedactCredential(apiKey),
		LocationID:     locationID,
		ConnectedAt:    now,
		Active:         true,
		UpdatedAt:      now,
	}
	if previous != nil {
		conn.LastSyncAt = previous.LastSyncAt
		if previous.Active && !previous.ConnectedAt.IsZero() {
			conn.ConnectedAt = previous.ConnectedAt
		}
	}

	if err := s.store.SaveConnection(ctx, conn); err != nil {
		log.Error("failed to save connection", zap.Error(err))
		return false
	}

	sess.attach(gw)
	log.Info("connected to CRM", zap.String("location", locationID), zap.String("credential", conn.CredentialHint))
	return true
}

// dialGateway creates and connects a gateway, turning panics into errors.
func (s *Service) dialGateway(ctx context.Context, apiKey, locationID string) (gw Gateway, err error) {
	defer func() {
		if r := recover(); r != nil {
			gw, err = nil, fmt.Errorf("gateway panicked: %v", r)
		}
	}()

	if s.newGateway == nil {
		return nil, errors.New("no gateway factory configured")
	}
	gw, err = s.newGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	if err := gw.Connect(ctx, apiKey, locationID); err != nil {
		return nil, err
	}
	return gw, nil
}

// Disconnect stops auto-sync, drops the live gateway and marks the stored
// connection inactive. Synced documents are kept.
func (s *Service) Disconnect(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	s.StopAutoSync(sess)
	sess.detach()

	if !sess.authenticated() {
		return
	}
	log := s.logger.With(zap.String("owner", sess.OwnerUserID))

	conn, err := s.store.GetConnection(ctx, sess.OwnerUserID)
	if err != nil {
		log.Error("failed to read connection", zap.Error(err))
		return
	}
	if conn == nil {
		return
	}

	conn.Active = false
	conn.CredentialHint = ""
	conn.UpdatedAt = s.now()
	if err := s.store.SaveConnection(ctx, conn); err != nil {
		log.Error("failed to save connection", zap.Error(err))
		return
	}
	log.Info("disconnected from CRM")
}

// GetStatus summarizes the stored connection. Missing data and store errors
// both yield zero values.
func (s *Service) GetStatus(ctx context.Context, sess *Session) Status {
	if !sess.authenticated() {
		return Status{}
	}
	owner := sess.OwnerUserID
	log := s.logger.With(zap.String("owner", owner))

	conn, err := s.store.GetConnection(ctx, owner)
	if err != nil {
		log.Warn("failed to read connection", zap.Error(err))
		return Status{}
	}
	if conn == nil {
		return Status{}
	}

	status := Status{LastSync: conn.LastSyncAt, IsConnected: conn.Active}

	if status.ContactCount, err = s.store.CountContacts(ctx, owner); err != nil {
		log.Warn("failed to count contacts", zap.Error(err))
		status.ContactCount = 0
	}
	if status.OpportunityCount, err = s.store.CountOpportunities(ctx, owner); err != nil {
		log.Warn("failed to count opportunities", zap.Error(err))
		status.OpportunityCount = 0
	}
	return status
}
