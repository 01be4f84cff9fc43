package asyncrt

import (
	"sync/atomic"
)

// SchedulerState represents the run-state of a Scheduler.
//
// State Machine (Performance-First Design):
//
//	StateAwake (0) → StateRunning (3)       [Run()]
//	StateRunning (3) → StateSleeping (2)    [poll() via CAS]
//	StateRunning (3) → StateTerminating (4) [Shutdown()]
//	StateSleeping (2) → StateRunning (3)    [poll() wake via CAS]
//	StateSleeping (2) → StateTerminating (4) [Shutdown()]
//	StateTerminating (4) → StateTerminated (1) [shutdown complete]
//	StateTerminated (1) → (terminal)
//
// State Transition Rules:
//   - Use TryTransition() (CAS) for temporary states (Running, Sleeping)
//   - Use Store() for irreversible states (Terminated)
//   - Using Store(Running) or Store(Sleeping) is a BUG (breaks CAS logic)
//
// NOTE: the values are intentionally non-sequential; StateTerminated (1) and
// StateSleeping (2) predate StateRunning/StateTerminating in an earlier
// revision of this state machine and the numbering was never renumbered.
type SchedulerState uint64

const (
	// StateAwake indicates the scheduler has been created but not started.
	StateAwake SchedulerState = 0
	// StateTerminated indicates the scheduler has stopped and is fully shut down.
	StateTerminated SchedulerState = 1
	// StateSleeping indicates the scheduler is blocked in poll waiting for events.
	StateSleeping SchedulerState = 2
	// StateRunning indicates the scheduler is actively draining the job queue.
	StateRunning SchedulerState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating SchedulerState = 4
)

func (s SchedulerState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FdState is the state machine described by the Fd lifecycle: Open, a close
// request awaiting drain of in-flight syscalls, Closed, or Replaced (handed
// off to another wrapper). It reuses the same lock-free padded-CAS machinery
// as SchedulerState because both are single-word state machines mutated from
// more than one goroutine (the scheduler's own thread, and whichever
// goroutine calls Close or Replace).
type FdState uint64

const (
	// FdOpen is the initial state; syscalls and readiness subscriptions are
	// only permitted from here.
	FdOpen FdState = 0
	// FdCloseRequested means Close was called; the underlying OS close runs
	// once in_flight reaches zero.
	FdCloseRequested FdState = 1
	// FdClosed is terminal: the OS descriptor has been closed exactly once.
	FdClosed FdState = 2
	// FdReplaced is terminal: the descriptor was handed off to a new Fd via
	// Replace; this wrapper is inert.
	FdReplaced FdState = 3
)

func (s FdState) String() string {
	switch s {
	case FdOpen:
		return "Open"
	case FdCloseRequested:
		return "Close_requested"
	case FdClosed:
		return "Closed"
	case FdReplaced:
		return "Replaced"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine cell with cache-line padding,
// shared by SchedulerState and FdState.
//
// PERFORMANCE: uses pure atomic CAS operations with no mutex. Cache-line
// padding prevents false sharing between cores when many Fds live on
// adjacent heap allocations.
type fastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte                     // cache line padding (before value) //nolint:unused
	v atomic.Uint64                              // state value
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte // pad to complete cache line //nolint:unused
}

func newFastState(initial uint64) *fastState {
	s := &fastState{}
	s.v.Store(initial)
	return s
}

// Load returns the current state atomically. No validation; trusts the
// stored value.
func (s *fastState) Load() uint64 {
	return s.v.Load()
}

// Store atomically stores a new state with no transition validation.
func (s *fastState) Store(state uint64) {
	s.v.Store(state)
}

// TryTransition attempts to atomically transition from one state to
// another. Returns true if the transition was successful.
func (s *fastState) TryTransition(from, to uint64) bool {
	return s.v.CompareAndSwap(from, to)
}

// TransitionAny attempts to transition from any valid source state to the
// target. Returns true if the transition was successful.
func (s *fastState) TransitionAny(validFrom []uint64, to uint64) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(from, to) {
			return true
		}
	}
	return false
}

func newSchedulerState() *fastState { return newFastState(uint64(StateAwake)) }

func (s *fastState) schedulerState() SchedulerState { return SchedulerState(s.Load()) }

func newFdState() *fastState { return newFastState(uint64(FdOpen)) }

func (s *fastState) fdState() FdState { return FdState(s.Load()) }
