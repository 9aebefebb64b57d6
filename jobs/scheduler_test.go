package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

func TestStartRejectsInvalidInterval(t *testing.T) {
	s := NewScheduler(nil)

	_, err := s.Start("bad", 0, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = s.Start("bad", -time.Second, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidInterval)

	assert.Empty(t, s.Names())
}

func TestJobRunsOnInterval(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	defer s.StopAll()

	var calls atomic.Int64
	h, err := s.Start("tick", 10*time.Millisecond, func(context.Context) error {
		calls.Inc()
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "tick", h.Name())
	assert.Equal(t, 10*time.Millisecond, h.Interval())
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	s := NewScheduler(nil)
	defer s.StopAll()

	release := make(chan struct{})
	var started atomic.Int64
	h, err := s.Start("slow", 5*time.Millisecond, func(context.Context) error {
		started.Inc()
		<-release
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return h.Skipped() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.Running())
	assert.Equal(t, int64(1), started.Load())
	assert.False(t, h.Trigger())

	close(release)
	assert.Eventually(t, func() bool { return h.Runs() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestStopIsIdempotentAndHalts(t *testing.T) {
	s := NewScheduler(nil)

	var calls atomic.Int64
	h, err := s.Start("halt", 5*time.Millisecond, func(context.Context) error {
		calls.Inc()
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	assert.True(t, h.Stopped())
	assert.False(t, h.Trigger())

	_, ok := s.Get("halt")
	assert.False(t, ok)

	assert.Eventually(t, func() bool { return !h.Running() }, time.Second, 5*time.Millisecond)
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestStartReplacesJobWithSameName(t *testing.T) {
	s := NewScheduler(nil)
	defer s.StopAll()

	noop := func(context.Context) error { return nil }

	first, err := s.Start("sync", time.Hour, noop)
	require.NoError(t, err)
	second, err := s.Start("sync", time.Hour, noop)
	require.NoError(t, err)

	assert.True(t, first.Stopped())
	assert.False(t, second.Stopped())

	got, ok := s.Get("sync")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, []string{"sync"}, s.Names())

	// Stopping the replaced handle must not disarm its successor.
	first.Stop()
	_, ok = s.Get("sync")
	assert.True(t, ok)
}

func TestStopCancelsRunContext(t *testing.T) {
	s := NewScheduler(nil)

	cancelled := make(chan struct{})
	h, err := s.Start("ctx", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	require.NoError(t, err)
	require.True(t, h.Trigger())

	h.Stop()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("run context was not cancelled")
	}
}

func TestErrorAndPanicHandlers(t *testing.T) {
	errs := make(chan error, 1)
	panics := make(chan any, 1)

	s := NewScheduler(nil).
		SetErrorHandler(func(_ string, err error, _ *zap.Logger) { errs <- err }).
		SetPanicHandler(func(_ string, v any, _ *zap.Logger) { panics <- v })
	defer s.StopAll()

	failing, err := s.Start("fail", time.Hour, func(context.Context) error { return errors.New("boom") })
	require.NoError(t, err)
	require.True(t, failing.Trigger())

	select {
	case got := <-errs:
		assert.EqualError(t, got, "boom")
	case <-time.After(time.Second):
		t.Fatal("error handler not called")
	}

	panicking, err := s.Start("panic", time.Hour, func(context.Context) error { panic("kaboom") })
	require.NoError(t, err)
	require.True(t, panicking.Trigger())

	select {
	case got := <-panics:
		assert.Equal(t, "kaboom", got)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}

	assert.Eventually(t, func() bool { return !panicking.Running() }, time.Second, 5*time.Millisecond)
}
