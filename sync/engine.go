// ABOUTME: One bounded sync pass: contacts, then opportunities, then optional pipelines
// ABOUTME: Per-record failures are collected into the result and never abort the pass
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/models"
	"go.uber.org/zap"
)

// SyncAll runs a manually triggered pass. Expected failures are reported in
// the result, never as a panic or error.
func (s *Service) SyncAll(ctx context.Context, sess *Session, opts models.SyncOptions) models.SyncResult {
	return s.SyncAllWithTrigger(ctx, sess, opts, models.TriggerManual)
}

// SyncAllWithTrigger runs a pass and records it in the run history under
// trigger.
func (s *Service) SyncAllWithTrigger(ctx context.Context, sess *Session, opts models.SyncOptions, trigger string) (result models.SyncResult) {
	if !sess.authenticated() {
		return models.FailedResult(ErrNotAuthenticated)
	}
	owner := sess.OwnerUserID
	log := s.logger.With(zap.String("owner", owner), zap.String("trigger", trigger))

	gw := sess.Gateway()
	if gw == nil {
		return models.FailedResult(ErrNotConnected)
	}
	conn, err := s.store.GetConnection(ctx, owner)
	if err != nil {
		return models.FailedResult(fmt.Errorf("failed to read connection: %w", err))
	}
	if conn == nil || !conn.Active {
		return models.FailedResult(ErrNotConnected)
	}

	if !sess.syncing.CompareAndSwap(false, true) {
		log.Info("sync skipped", zap.Error(ErrSyncInProgress))
		return models.FailedResult(ErrSyncInProgress)
	}
	defer sess.syncing.Store(false)

	release, ok, err := s.locker.TryLock(ctx, owner)
	if err != nil {
		return models.FailedResult(fmt.Errorf("failed to acquire sync lock: %w", err))
	}
	if !ok {
		log.Info("sync skipped, owner locked elsewhere", zap.Error(ErrSyncInProgress))
		return models.FailedResult(ErrSyncInProgress)
	}
	defer release()

	p := &pass{
		svc:    s,
		owner:  owner,
		gw:     gw,
		opts:   opts.Normalized(),
		logger: log,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("sync pass panicked", zap.Any("panic", r))
			result = p.result
			result.Errors = append(result.Errors, fmt.Sprintf("sync panicked: %v", r))
			result.Success = false
			result.CompletedAt = s.now()
		}
	}()

	started := s.now()
	s.setSyncStatus(ctx, owner, models.SyncStatusSyncing, "")
	log.Info("sync started",
		zap.Bool("contacts", p.opts.SyncContacts),
		zap.Bool("opportunities", p.opts.SyncOpportunities),
		zap.Bool("pipelines", p.opts.SyncPipelines),
		zap.Int("batch_size", p.opts.BatchSize),
	)

	p.run(ctx)

	completed := s.now()
	if err := s.store.TouchLastSync(ctx, owner, completed); err != nil {
		p.fail("failed to update last sync: %v", err)
	}

	result = p.result
	result.Success = len(result.Errors) == 0
	result.CompletedAt = completed

	if result.Success {
		s.setSyncStatus(ctx, owner, models.SyncStatusIdle, "")
	} else {
		s.setSyncStatus(ctx, owner, models.SyncStatusError, strings.Join(result.Errors, "; "))
	}

	if err := s.store.RecordSyncRun(ctx, models.NewSyncRun(owner, trigger, started, result)); err != nil {
		log.Warn("failed to record sync run", zap.Error(err))
	}

	log.Info("sync finished",
		zap.Bool("success", result.Success),
		zap.Int("contacts", result.ContactsSynced),
		zap.Int("opportunities", result.OpportunitiesSynced),
		zap.Int("pipelines", result.PipelinesSynced),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("elapsed", completed.Sub(started)),
	)
	return result
}

func (s *Service) setSyncStatus(ctx context.Context, owner, status, message string) {
	if err := s.store.SetSyncStatus(ctx, owner, status, message); err != nil {
		s.logger.Warn("failed to update sync status",
			zap.String("owner", owner), zap.String("status", status), zap.Error(err))
	}
}

// pass holds the state of one SyncAll call.
type pass struct {
	svc    *Service
	owner  string
	gw     Gateway
	opts   models.SyncOptions
	logger *zap.Logger
	result models.SyncResult
}

func (p *pass) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.result.Errors = append(p.result.Errors, msg)
	p.logger.Warn("sync error", zap.String("error", msg))
}

func (p *pass) run(ctx context.Context) {
	if p.opts.SyncContacts {
		p.step(ctx, models.KindContacts, p.syncContacts)
	}
	if p.opts.SyncOpportunities {
		p.step(ctx, models.KindOpportunities, p.syncOpportunities)
	}
	if p.opts.SyncPipelines {
		p.step(ctx, models.KindPipelines, p.syncPipelines)
	}
}

// step runs one resource type. A panic ends that type only; batches it
// already committed stay counted.
func (p *pass) step(ctx context.Context, kind models.Kind, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("sync step panicked", zap.String("kind", string(kind)), zap.Any("panic", r))
			p.fail("%s: sync panicked: %v", kind, r)
		}
	}()
	fn(ctx)
}

func (p *pass) syncContacts(ctx context.Context) {
	records, err := p.gw.ListContacts(ctx)
	if err != nil {
		p.fail("contacts: %v", err)
		return
	}

	w := p.newWriter(models.KindContacts)
	for i := range records {
		c, err := transformContact(p.owner, &records[i], p.svc.now())
		if err != nil {
			p.fail("contact %s: %v", recordLabel(records[i].ID, i), err)
			continue
		}
		w.batch.Contacts = append(w.batch.Contacts, c)
		w.maybeFlush(ctx)
	}
	w.flush(ctx)
}

func (p *pass) syncOpportunities(ctx context.Context) {
	records, err := p.gw.ListOpportunities(ctx)
	if err != nil {
		p.fail("opportunities: %v", err)
		return
	}

	w := p.newWriter(models.KindOpportunities)
	for i := range records {
		o, err := transformOpportunity(p.owner, &records[i], p.svc.now())
		if err != nil {
			p.fail("opportunity %s: %v", recordLabel(records[i].ID, i), err)
			continue
		}
		w.batch.Opportunities = append(w.batch.Opportunities, o)
		w.maybeFlush(ctx)
	}
	w.flush(ctx)
}

// syncPipelines is best effort: problems are logged, never reported.
func (p *pass) syncPipelines(ctx context.Context) {
	lister, ok := p.gw.(PipelineLister)
	if !ok {
		p.logger.Debug("gateway does not list pipelines, skipping")
		return
	}

	records, err := lister.ListPipelines(ctx)
	if err != nil {
		p.logger.Warn("failed to list pipelines", zap.Error(err))
		return
	}

	batch := &models.Batch{OwnerUserID: p.owner}
	for i := range records {
		pl, err := transformPipeline(p.owner, &records[i], p.svc.now())
		if err != nil {
			p.logger.Warn("skipping pipeline", zap.String("pipeline", recordLabel(records[i].ID, i)), zap.Error(err))
			continue
		}
		batch.Pipelines = append(batch.Pipelines, pl)
	}
	if batch.Len() == 0 {
		return
	}

	if err := p.svc.store.CommitBatch(ctx, batch); err != nil {
		p.logger.Warn("failed to store pipelines", zap.Error(err))
		return
	}
	p.result.PipelinesSynced += batch.Len()
}

func (p *pass) count(kind models.Kind, n int) {
	switch kind {
	case models.KindContacts:
		p.result.ContactsSynced += n
	case models.KindOpportunities:
		p.result.OpportunitiesSynced += n
	}
}

func recordLabel(id string, index int) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index+1)
}

// batchWriter commits documents of one kind in batches of opts.BatchSize.
type batchWriter struct {
	pass  *pass
	kind  models.Kind
	batch models.Batch
}

func (p *pass) newWriter(kind models.Kind) *batchWriter {
	return &batchWriter{
		pass:  p,
		kind:  kind,
		batch: models.Batch{OwnerUserID: p.owner},
	}
}

func (w *batchWriter) maybeFlush(ctx context.Context) {
	if w.batch.Len() >= w.pass.opts.BatchSize {
		w.flush(ctx)
	}
}

// flush commits the pending documents and counts them into the pass result.
// A failed commit is reported and its documents are not counted.
func (w *batchWriter) flush(ctx context.Context) {
	n := w.batch.Len()
	if n == 0 {
		return
	}
	defer w.batch.Reset()

	start := time.Now()
	if err := w.pass.svc.store.CommitBatch(ctx, &w.batch); err != nil {
		w.pass.fail("%s: batch commit failed: %v", w.kind, err)
		return
	}
	w.pass.count(w.kind, n)
	w.pass.logger.Debug("batch committed",
		zap.String("kind", string(w.kind)),
		zap.Int("documents", n),
		zap.Duration("elapsed", time.Since(start)),
	)
}

var _ PipelineLister = (*gateway.Client)(nil)
var _ Gateway = (*gateway.Client)(nil)
