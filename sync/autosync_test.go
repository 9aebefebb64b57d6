package sync

import (
	"testing"
	"time"

	"github.com/harperreed/leadsync/jobs"
	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAutoSyncRunsScheduledPasses(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeGateway{contacts: contactList(2)})
	sess := connectedSession(t, svc, "user-1")

	h, err := svc.StartAutoSyncEvery(sess, 10*time.Millisecond, contactsOnly(10))
	require.NoError(t, err)
	defer svc.StopAutoSync(sess)

	assert.Same(t, h, sess.AutoSync())
	assert.Equal(t, AutoSyncJobName("user-1"), h.Name())

	assert.Eventually(t, func() bool { return store.runCount() >= 2 }, 2*time.Second, 5*time.Millisecond)

	store.mu.Lock()
	trigger := store.runs[0].Trigger
	store.mu.Unlock()
	assert.Equal(t, models.TriggerScheduled, trigger)
}

func TestStartAutoSyncRearms(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeGateway{})
	sess := connectedSession(t, svc, "user-1")

	first, err := svc.StartAutoSync(sess, 30, models.DefaultSyncOptions())
	require.NoError(t, err)
	second, err := svc.StartAutoSync(sess, 15, models.DefaultSyncOptions())
	require.NoError(t, err)

	assert.True(t, first.Stopped())
	assert.False(t, second.Stopped())
	assert.Equal(t, 15*time.Minute, second.Interval())
	assert.Equal(t, []string{"autosync:user-1"}, svc.Scheduler().Names())

	svc.StopAutoSync(sess)
	svc.StopAutoSync(sess)
	assert.True(t, second.Stopped())
	assert.Empty(t, svc.Scheduler().Names())
}

func TestStartAutoSyncValidation(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeGateway{})

	_, err := svc.StartAutoSync(NewSession(""), 5, models.DefaultSyncOptions())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	sess := connectedSession(t, svc, "user-1")
	_, err = svc.StartAutoSync(sess, 0, models.DefaultSyncOptions())
	assert.ErrorIs(t, err, jobs.ErrInvalidInterval)
	assert.Nil(t, sess.AutoSync())
}

func TestAutoSyncSkipsWhileManualPassRuns(t *testing.T) {
	gw := &fakeGateway{contacts: contactList(1), block: make(chan struct{}), listing: make(chan struct{})}
	store := newMemStore()
	svc := newTestService(store, gw)
	sess := connectedSession(t, svc, "user-1")

	h, err := svc.StartAutoSyncEvery(sess, time.Hour, contactsOnly(10))
	require.NoError(t, err)
	defer svc.StopAutoSync(sess)

	require.True(t, h.Trigger())
	<-gw.listing

	// The job is in flight, so a second tick is dropped by the handle and a
	// manual pass is refused by the session guard.
	assert.False(t, h.Trigger())
	assert.Equal(t, int64(1), h.Skipped())
	result := svc.SyncAll(t.Context(), sess, contactsOnly(10))
	assert.Equal(t, []string{ErrSyncInProgress.Error()}, result.Errors)

	close(gw.block)
	assert.Eventually(t, func() bool { return store.runCount() == 1 && !h.Running() }, time.Second, 5*time.Millisecond)
}
