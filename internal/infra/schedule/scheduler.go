package schedule

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default pool sizing.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
)

// Config configures a Scheduler.
type Config struct {
	// Name is attached to log records.
	Name string

	// Workers is the number of goroutines executing task bodies.
	Workers int

	// QueueSize bounds the pending task queue. When it is full, Submit runs
	// the task on an overflow goroutine instead of blocking the caller.
	QueueSize int

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Scheduler executes tasks on a fixed pool of workers.
type Scheduler struct {
	name   string
	clock  clockwork.Clock
	logger *slog.Logger

	queue  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	handles map[*Handle]struct{}

	overflow atomic.Int64
}

// New creates a Scheduler and starts its workers.
func New(cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "scheduler"
	}

	s := &Scheduler{
		name:    cfg.Name,
		clock:   cfg.Clock,
		logger:  cfg.Logger.With("scheduler", cfg.Name),
		queue:   make(chan func(), cfg.QueueSize),
		stopCh:  make(chan struct{}),
		handles: make(map[*Handle]struct{}),
	}

	s.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go s.worker()
	}
	return s
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case fn := <-s.queue:
			s.run(fn)
		}
	}
}

// run executes fn, converting a panic into a log record.
func (s *Scheduler) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

// Submit queues fn for immediate execution. It returns false once the
// scheduler is stopped.
func (s *Scheduler) Submit(fn func()) bool {
	if s.isStopped() {
		return false
	}
	select {
	case s.queue <- fn:
		return true
	default:
	}

	n := s.overflow.Add(1)
	s.logger.Warn("task queue full, running on overflow goroutine", "overflow_total", n)
	go s.run(fn)
	return true
}

// Schedule runs fn once after delay. A non-positive delay submits fn
// immediately.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Handle {
	h := newHandle()
	if delay <= 0 {
		if !s.Submit(fn) {
			h.Cancel()
		}
		return h
	}
	if !s.track(h) {
		return h
	}

	h.setTimer(s.clock.AfterFunc(delay, func() {
		s.untrack(h)
		if h.Cancelled() {
			return
		}
		s.Submit(func() {
			if !h.Cancelled() {
				fn()
			}
		})
	}))
	return h
}

// ScheduleWithFixedDelay runs fn after initial and then again delay after
// each run completes, until the handle is cancelled or the scheduler stops.
func (s *Scheduler) ScheduleWithFixedDelay(initial, delay time.Duration, fn func()) *Handle {
	h := newHandle()
	if delay <= 0 {
		panic("schedule: fixed delay must be positive")
	}
	if !s.track(h) {
		return h
	}

	var fire func()
	fire = func() {
		if h.Cancelled() {
			return
		}
		ok := s.Submit(func() {
			if h.Cancelled() {
				return
			}
			s.run(fn)
			if h.Cancelled() || s.isStopped() {
				return
			}
			h.setTimer(s.clock.AfterFunc(delay, fire))
		})
		if !ok {
			h.Cancel()
		}
	}

	if initial <= 0 {
		fire()
	} else {
		h.setTimer(s.clock.AfterFunc(initial, fire))
	}
	return h
}

// Stop cancels all pending timers and stops the workers. Tasks already
// queued but not started are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for h := range handles {
		h.Cancel()
	}
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Scheduler) track(h *Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		h.cancelled.Store(true)
		return false
	}
	s.handles[h] = struct{}{}
	h.onCancel = s.untrack
	return true
}

func (s *Scheduler) untrack(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h)
}
