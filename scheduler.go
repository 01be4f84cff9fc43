package asyncrt

import (
	"sync"
	"time"
)

// Standard scheduler errors.
var (
	ErrSchedulerTerminated = &TypeError{Message: "asyncrt: scheduler has been terminated"}
	ErrReentrantRun        = &TypeError{Message: "asyncrt: cannot call Run from within the scheduler's own goroutine"}
)

// Scheduler is the single-threaded, cooperative event loop of §4.2: one
// FIFO queue of (monitor, thunk) jobs, a Clock, an Fd watcher, and a
// Monitor tree, all owned by the one goroutine that calls Run. Fill
// calls made from any other goroutine must go through ExternalFill,
// which hands the fill across via a mutex-guarded queue and wakes the
// loop.
type Scheduler struct {
	opts *schedulerOptions

	state *fastState

	queue *jobQueue

	clock   *Clock
	watcher FdWatcher

	root           *Monitor
	currentMonitor *Monitor

	shutdownMu    sync.Mutex
	shutdownState shutdownState
	hooks         []func() Deferred[struct{}]

	externalMu  sync.Mutex
	externalJob []job

	wakeReadFd  int
	wakeWriteFd int

	fdByRaw   map[int]*Fd
	fdWatchMu sync.Mutex

	metrics *metricsCollector

	done chan struct{}
}

// NewScheduler constructs a Scheduler in state Awake, not yet running.
func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	resolved, err := resolveSchedulerOptions(opts)
	if err != nil {
		return nil, err
	}

	watcher, err := newPlatformWatcher(resolved.watcherBacklog)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:    resolved,
		state:   newSchedulerState(),
		queue:   newJobQueue(),
		watcher: watcher,
		fdByRaw: make(map[int]*Fd),
		done:    make(chan struct{}),
	}
	s.clock = newClock(s)
	s.root = newRootMonitor(s)
	s.currentMonitor = s.root
	if resolved.metricsEnabled {
		s.metrics = newMetricsCollector()
	}

	readFd, writeFd, err := createWakeFd()
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}
	s.wakeReadFd, s.wakeWriteFd = readFd, writeFd
	if s.wakeReadFd >= 0 {
		_ = s.watcher.Register(s.wakeReadFd, DirRead)
	}

	return s, nil
}

// logger returns the configured Logger, defaulting to a no-op.
func (s *Scheduler) logger() Logger { return s.opts.logger }

// Clock returns the scheduler's timer heap.
func (s *Scheduler) Clock() *Clock { return s.clock }

// enqueueJob appends a (monitor, thunk) job at the tail of the job queue.
func (s *Scheduler) enqueueJob(m *Monitor, thunk func()) {
	s.queue.push(job{monitor: m, thunk: thunk})
}

// Yield enqueues thunk under the current monitor at the tail of the job
// queue, so it runs after every job already queued, later in the same
// queue drain.
func (s *Scheduler) Yield(thunk func()) {
	s.enqueueJob(s.Current(), thunk)
}

// ExternalFill is the only supported way to fill an Ivar from a
// goroutine other than the one running Run. It hands the fill across a
// mutex-guarded slice and wakes the loop so the fill's subscribers are
// dispatched on the scheduler's own goroutine, preserving the no-locks
// invariant inside callback execution.
func (s *Scheduler) ExternalFill(thunk func()) {
	s.externalMu.Lock()
	s.externalJob = append(s.externalJob, job{monitor: s.root, thunk: thunk})
	s.externalMu.Unlock()
	s.wake()
}

func (s *Scheduler) fillFromGoroutine(iv *Ivar[Result[any]], r Result[any]) {
	s.ExternalFill(func() { iv.FillIfEmpty(r) })
}

func (s *Scheduler) wake() {
	if s.wakeWriteFd >= 0 {
		_ = writeWakeFd(s.wakeWriteFd)
	}
}

func (s *Scheduler) drainExternal() {
	s.externalMu.Lock()
	pending := s.externalJob
	s.externalJob = nil
	s.externalMu.Unlock()
	for _, j := range pending {
		s.queue.push(j)
	}
}

// registerFdDir and unregisterFdDir bridge Fd's per-direction
// subscription model onto the platform FdWatcher, tracking raw fd ->
// *Fd so that Poll's WatchEvents can be routed back to the right Fd.
func (s *Scheduler) registerFdDir(f *Fd, dir Direction) {
	s.fdWatchMu.Lock()
	s.fdByRaw[f.raw] = f
	s.fdWatchMu.Unlock()
	_ = s.watcher.Register(f.raw, dir)
}

func (s *Scheduler) unregisterFdDir(f *Fd, dir Direction) {
	_ = s.watcher.Unregister(f.raw, dir)
}

// Run drives the scheduler loop until shutdown completes, per §4.2:
// drain the job queue to empty, fire any clock events now due, compute
// the next poll timeout from the earliest pending clock event, poll the
// Fd watcher, translate watch events into Fd readiness deliveries, and
// repeat. Run must be called from the goroutine that will own the
// scheduler for its lifetime; it returns once shutdown has completed.
func (s *Scheduler) Run() error {
	if !s.state.TryTransition(uint64(StateAwake), uint64(StateRunning)) {
		return &TypeError{Message: "asyncrt: scheduler already running or terminated"}
	}

	for {
		st := SchedulerState(s.state.Load())
		if st == StateTerminated {
			s.runShutdownDrain()
			return nil
		}

		if s.metrics != nil {
			s.externalMu.Lock()
			externalDepth := len(s.externalJob)
			s.externalMu.Unlock()
			s.metrics.recordQueueDepths(externalDepth, s.queue.len(), s.clock.Len())
		}
		s.drainExternal()
		s.drainQueue()

		now := time.Now()
		fired := s.clock.fireDue(now)
		s.drainQueue()

		timeout := s.pollTimeout(now)
		s.state.TryTransition(uint64(StateRunning), uint64(StateSleeping))
		events, err := s.watcher.Poll(timeout)
		s.state.TryTransition(uint64(StateSleeping), uint64(StateRunning))
		if s.metrics != nil {
			s.fdWatchMu.Lock()
			openFds := len(s.fdByRaw)
			s.fdWatchMu.Unlock()
			s.metrics.recordPoll(fired, openFds)
		}
		if err != nil {
			s.logger().Log(LogEntry{Level: LevelError, Category: "scheduler", Message: "fd watcher error", Err: err})
			s.Shutdown(1)
			continue
		}
		s.dispatchEvents(events)
	}
}

func (s *Scheduler) pollTimeout(now time.Time) int {
	const maxDelay = 10 * time.Second
	delay := maxDelay
	if when, ok := s.clock.nextDeadline(); ok {
		d := when.Sub(now)
		if d < 0 {
			d = 0
		}
		if d < delay {
			delay = d
		}
	}
	if len(s.externalJob) > 0 {
		return 0
	}
	if delay > 0 && delay < time.Millisecond {
		return 1
	}
	return int(delay.Milliseconds())
}

func (s *Scheduler) dispatchEvents(events []WatchEvent) {
	for _, ev := range events {
		if ev.FdID == s.wakeReadFd {
			_ = drainWakeFd(s.wakeReadFd)
			continue
		}
		s.fdWatchMu.Lock()
		fd := s.fdByRaw[ev.FdID]
		s.fdWatchMu.Unlock()
		if fd == nil {
			continue
		}
		fd.deliverReady(ev.Dir, ev.Readiness)
	}
	s.drainQueue()
}

// drainQueue runs every job presently in the queue, plus whatever jobs
// those jobs enqueue (matching §5's ordering guarantee: a fill's
// subscriber jobs are dequeued later in the same drain, after the jobs
// already queued, never synchronously within the fill itself).
func (s *Scheduler) drainQueue() {
	for {
		j, ok := s.queue.pop()
		if !ok {
			return
		}
		s.runJob(j)
	}
}

func (s *Scheduler) runJob(j job) {
	prev := s.currentMonitor
	s.currentMonitor = j.monitor
	if s.metrics != nil {
		s.metrics.beginJob()
	}
	defer func() {
		s.currentMonitor = prev
		if s.metrics != nil {
			s.metrics.recordJob()
		}
		if rec := recover(); rec != nil {
			j.monitor.deliver(toError(rec))
		}
	}()
	j.thunk()
}

// Metrics returns a snapshot of scheduler runtime statistics, or the
// zero value if WithMetrics(true) was not set.
func (s *Scheduler) Metrics() Metrics {
	if s.metrics == nil {
		return Metrics{}
	}
	return s.metrics.Snapshot()
}

// Done returns a channel closed once the scheduler has fully terminated
// (after Shutdown's hooks have run or timed out), for callers that need
// to block on termination from outside Run's own goroutine.
func (s *Scheduler) Done() <-chan struct{} { return s.done }
