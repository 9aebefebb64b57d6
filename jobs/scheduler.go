// ABOUTME: Named periodic jobs with cancellable handles
// ABOUTME: A tick that fires while the previous run is still active is skipped
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrInvalidInterval = errors.New("job interval must be positive")

// JobFunc is one run of a job. ctx is cancelled when the job is stopped.
type JobFunc func(ctx context.Context) error

// ErrorHandler receives errors returned by a job. First argument is the job name.
type ErrorHandler func(string, error, *zap.Logger)

// PanicHandler receives values recovered from a panicking job.
type PanicHandler func(string, any, *zap.Logger)

// DefaultErrorHandler logs job errors.
func DefaultErrorHandler() ErrorHandler {
	return func(name string, err error, log *zap.Logger) {
		if err != nil {
			log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// DefaultPanicHandler logs recovered panics.
func DefaultPanicHandler() PanicHandler {
	return func(name string, v any, log *zap.Logger) {
		log.Error("job panicked", zap.String("job", name), zap.String("panic", fmt.Sprintf("%#v", v)))
	}
}

// Handle controls one armed job.
type Handle struct {
	name     string
	interval time.Duration
	fn       JobFunc
	logger   *zap.Logger
	onError  ErrorHandler
	onPanic  PanicHandler
	release  func(*Handle)

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	running atomic.Bool
	skipped atomic.Int64
	runs    atomic.Int64
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Interval() time.Duration {
	return h.interval
}

// Running reports whether a run is in flight.
func (h *Handle) Running() bool {
	return h.running.Load()
}

// Skipped counts ticks dropped because a run was still in flight.
func (h *Handle) Skipped() int64 {
	return h.skipped.Load()
}

// Runs counts completed runs.
func (h *Handle) Runs() int64 {
	return h.runs.Load()
}

// Stopped reports whether Stop has been called.
func (h *Handle) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Trigger starts a run now unless one is in flight or the job is stopped.
func (h *Handle) Trigger() bool {
	if h.ctx.Err() != nil {
		return false
	}
	return h.fire()
}

// Stop disarms the job and waits for the tick loop to exit. A run already in
// flight sees its context cancelled and finishes on its own. Safe to call more
// than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
		if h.release != nil {
			h.release(h)
		}
		h.logger.Debug("job stopped", zap.String("job", h.name))
	})
}

func (h *Handle) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.fire()
		}
	}
}

func (h *Handle) fire() bool {
	if !h.running.CompareAndSwap(false, true) {
		h.skipped.Inc()
		h.logger.Debug("job still running, tick skipped", zap.String("job", h.name))
		return false
	}

	go func() {
		defer h.running.Store(false)
		h.exec()
	}()
	return true
}

func (h *Handle) exec() {
	defer h.runs.Inc()
	defer func() {
		if r := recover(); r != nil && h.onPanic != nil {
			h.onPanic(h.name, r, h.logger)
		}
	}()

	if err := h.fn(h.ctx); err != nil && h.onError != nil {
		h.onError(h.name, err, h.logger)
	}
}

// Scheduler keeps at most one armed job per name.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*Handle
	logger  *zap.Logger
	onError ErrorHandler
	onPanic PanicHandler
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:    make(map[string]*Handle),
		logger:  logger,
		onError: DefaultErrorHandler(),
		onPanic: DefaultPanicHandler(),
	}
}

func (s *Scheduler) SetErrorHandler(h ErrorHandler) *Scheduler {
	s.onError = h
	return s
}

func (s *Scheduler) SetPanicHandler(h PanicHandler) *Scheduler {
	s.onPanic = h
	return s
}

// Start arms fn to run every interval. A job already armed under name is
// stopped first.
func (s *Scheduler) Start(name string, interval time.Duration, fn JobFunc) (*Handle, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if fn == nil {
		return nil, errors.New("job function is required")
	}

	s.Stop(name)

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   s.logger,
		onError:  s.onError,
		onPanic:  s.onPanic,
		release:  s.forget,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[name] = h
	s.mu.Unlock()

	go h.loop()

	s.logger.Info("job armed", zap.String("job", name), zap.Duration("interval", interval))
	return h, nil
}

func (s *Scheduler) forget(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[h.name] == h {
		delete(s.jobs, h.name)
	}
}

// Get returns the job armed under name.
func (s *Scheduler) Get(name string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.jobs[name]
	return h, ok
}

// Stop disarms the job armed under name. Returns false when none was armed.
func (s *Scheduler) Stop(name string) bool {
	h, ok := s.Get(name)
	if !ok {
		return false
	}
	h.Stop()
	return true
}

// Names lists armed jobs in sorted order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}

func (s *Scheduler) StopAll() {
	for _, name := range s.Names() {
		s.Stop(name)
	}
}
