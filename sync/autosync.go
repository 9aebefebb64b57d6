// ABOUTME: Periodic background sync armed per session on the service scheduler
// ABOUTME: Re-arming replaces the previous job; overlapping ticks are skipped
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadsync/jobs"
	"github.com/harperreed/leadsync/models"
	"go.uber.org/zap"
)

// AutoSyncJobName is the scheduler job name used for owner.
func AutoSyncJobName(owner string) string {
	return "autosync:" + owner
}

// StartAutoSync runs SyncAll every intervalMinutes until stopped.
func (s *Service) StartAutoSync(sess *Session, intervalMinutes int, opts models.SyncOptions) (*jobs.Handle, error) {
	return s.StartAutoSyncEvery(sess, time.Duration(intervalMinutes)*time.Minute, opts)
}

// StartAutoSyncEvery is StartAutoSync with an arbitrary interval.
func (s *Service) StartAutoSyncEvery(sess *Session, interval time.Duration, opts models.SyncOptions) (*jobs.Handle, error) {
	if !sess.authenticated() {
		return nil, ErrNotAuthenticated
	}
	owner := sess.OwnerUserID

	h, err := s.scheduler.Start(AutoSyncJobName(owner), interval, func(ctx context.Context) error {
		result := s.SyncAllWithTrigger(ctx, sess, opts, models.TriggerScheduled)
		if result.Success {
			return nil
		}
		if len(result.Errors) == 1 && result.Errors[0] == ErrSyncInProgress.Error() {
			return nil
		}
		return fmt.Errorf("scheduled sync: %s", strings.Join(result.Errors, "; "))
	})
	if err != nil {
		return nil, err
	}

	if prev := sess.swapAutoSync(h); prev != nil && prev != h {
		prev.Stop()
	}

	s.logger.Info("auto-sync armed", zap.String("owner", owner), zap.Duration("interval", interval))
	return h, nil
}

// StopAutoSync disarms the session's periodic sync, if any.
func (s *Service) StopAutoSync(sess *Session) {
	if sess == nil {
		return
	}
	h := sess.swapAutoSync(nil)
	if h == nil {
		return
	}
	h.Stop()
	s.logger.Info("auto-sync stopped", zap.String("owner", sess.OwnerUserID))
}
