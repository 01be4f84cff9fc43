package asyncrt

import (
	"strconv"
	"sync/atomic"
)

// Kind describes the category of OS resource an Fd wraps. It determines
// whether O_NONBLOCK is safe to set: regular files, sockets and fifos
// support it unconditionally; character devices support it but some
// drivers interpret it inconsistently, so callers are expected to probe
// behavior themselves.
type Kind uint8

const (
	KindFile Kind = iota
	KindSocket
	KindFifo
	KindChar
)

func (k Kind) supportsNonblock() bool { return true }

func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindFifo:
		return "fifo"
	case KindChar:
		return "char"
	default:
		return "file"
	}
}

// SyscallOutcome classifies the result of one syscall attempt performed
// through Fd.Syscall.
type SyscallOutcome uint8

const (
	// SyscallOK means the syscall completed; the caller's result value is
	// valid.
	SyscallOK SyscallOutcome = iota
	// SyscallAgain means the syscall returned EAGAIN/EWOULDBLOCK: the
	// caller should wait for readiness and retry.
	SyscallAgain
	// SyscallIntr means the syscall returned EINTR: retry immediately.
	SyscallIntr
	// SyscallError means the syscall failed with a non-retryable error.
	SyscallError
)

// ReadyToResult is what a Deferred returned from Fd.ReadyTo settles with.
type ReadyToResult struct {
	Readiness Readiness
}

// readySlot is one of the two (read, write) subscription slots on an Fd.
type readySlot struct {
	iv *Ivar[ReadyToResult]
}

// Fd wraps a raw OS descriptor with the lifecycle state machine of §4.3:
// Open -> Close_requested -> Closed, or Open -> Replaced. All mutation
// happens from scheduler callbacks; state and inFlight are held in atomic
// cells, and no other field is synchronized.
type Fd struct {
	sched          *Scheduler
	state          *fastState
	kind           Kind
	raw            int
	name           string
	supportsNB     bool
	nonblockSet    bool
	inFlight       atomic.Int64
	closeFinished  *Ivar[struct{}]
	slots          [2]readySlot // indexed by Direction
	watcherDirMask uint8        // bit per Direction currently registered with the watcher
}

// CreateFd returns a new Fd in state Open wrapping raw, per §4.3's create
// operation.
func (s *Scheduler) CreateFd(kind Kind, raw int, name string) *Fd {
	if s.opts.strictDebugNames && name == "" {
		panic(&TypeError{Message: "asyncrt: CreateFd requires a non-empty name (WithStrictDebugNames)"})
	}
	return &Fd{
		sched:         s,
		state:         newFdState(),
		kind:          kind,
		raw:           raw,
		name:          name,
		supportsNB:    kind.supportsNonblock(),
		closeFinished: NewIvar[struct{}](s),
	}
}

// Name returns the Fd's debug name.
func (f *Fd) Name() string { return f.name }

// Raw returns the wrapped OS descriptor. Valid only while the Fd is not
// Closed or Replaced.
func (f *Fd) Raw() int { return f.raw }

// State returns the Fd's current lifecycle state.
func (f *Fd) State() FdState { return f.state.fdState() }

// WithFd invokes fn with the raw descriptor while the Fd is Open. If
// nonblocking and the nonblock flag has not yet been set, it is set
// first (idempotently). This does not touch in_flight: it is synchronous
// use, per §4.3.
func (f *Fd) WithFd(fn func(raw int) (any, error), nonblocking bool) (any, error) {
	if f.State() != FdOpen {
		return nil, &AlreadyClosed{Name: f.name, State: f.State()}
	}
	if nonblocking && !f.nonblockSet {
		if err := setNonblock(f.raw, true); err != nil {
			return nil, err
		}
		f.nonblockSet = true
	}
	return fn(f.raw)
}

// Syscall performs one syscall attempt through fn, returning a Deferred
// that settles once the syscall has genuinely completed. EAGAIN results
// are translated into a ReadyTo subscription on dir and the syscall is
// retried once that subscription settles; EINTR results retry
// immediately within the same scheduler tick.
func (f *Fd) Syscall(dir Direction, fn func(raw int) (any, SyscallOutcome, error)) Deferred[Result[any]] {
	out := NewIvar[Result[any]](f.sched)
	var attempt func()
	attempt = func() {
		res, err := f.WithFd(func(raw int) (any, error) {
			v, outcome, serr := fn(raw)
			switch outcome {
			case SyscallOK:
				return v, nil
			case SyscallIntr:
				return nil, errRetryIntr
			case SyscallAgain:
				return nil, errRetryAgain
			default:
				return nil, serr
			}
		}, true)
		switch err {
		case nil:
			out.FillIfEmpty(Result[any]{Value: res})
		case errRetryIntr:
			f.sched.enqueueJob(f.sched.Current(), attempt)
		case errRetryAgain:
			Upon(f.ReadyTo(dir), func(ReadyToResult) { attempt() })
		default:
			out.FillIfEmpty(Result[any]{Err: err})
		}
	}
	attempt()
	return DeferredOf(out)
}

var (
	errRetryIntr  = &TypeError{Message: "asyncrt: retry (EINTR)"}
	errRetryAgain = &TypeError{Message: "asyncrt: retry (EAGAIN)"}
)

// ReadyTo subscribes to readiness on dir. If a subscription is already
// outstanding on that direction the existing Deferred is returned
// (at most one outstanding subscription per direction per fd).
// Increments in_flight; on the first subscription across either
// direction the Fd is registered with the scheduler's watcher.
func (f *Fd) ReadyTo(dir Direction) Deferred[ReadyToResult] {
	if f.slots[dir].iv != nil {
		return DeferredOf(f.slots[dir].iv)
	}
	iv := NewIvar[ReadyToResult](f.sched)
	f.slots[dir] = readySlot{iv: iv}
	f.inFlight.Add(1)

	bit := uint8(1) << dir
	if f.watcherDirMask == 0 {
		f.sched.registerFdDir(f, dir)
	} else if f.watcherDirMask&bit == 0 {
		f.sched.registerFdDir(f, dir)
	}
	f.watcherDirMask |= bit

	return DeferredOf(iv)
}

// deliverReady fills the slot for dir with readiness r, clears the slot,
// and decrements in_flight, per §4.3's slot-clearing rule.
func (f *Fd) deliverReady(dir Direction, r Readiness) {
	slot := f.slots[dir]
	if slot.iv == nil {
		return
	}
	f.slots[dir] = readySlot{}
	f.watcherDirMask &^= uint8(1) << dir
	f.inFlight.Add(-1)
	slot.iv.FillIfEmpty(ReadyToResult{Readiness: r})
}

// Close is idempotent: if already Closed or Close_requested, it returns
// close_finished. Otherwise it transitions to Close_requested, wakes
// both readiness slots with Closed, unregisters from the watcher, and
// (once in_flight reaches zero) schedules the OS close and transitions
// to Closed, filling close_finished.
func (f *Fd) Close() Deferred[struct{}] {
	for {
		cur := f.State()
		if cur == FdClosed || cur == FdCloseRequested {
			return DeferredOf(f.closeFinished)
		}
		if !f.state.TryTransition(uint64(cur), uint64(FdCloseRequested)) {
			continue
		}
		break
	}

	for dir := Direction(0); dir < 2; dir++ {
		if f.slots[dir].iv != nil {
			f.sched.unregisterFdDir(f, dir)
			f.deliverReady(dir, Closed)
		}
	}

	f.scheduleCloseWhenIdle()
	return DeferredOf(f.closeFinished)
}

func (f *Fd) scheduleCloseWhenIdle() {
	if f.inFlight.Load() != 0 {
		f.sched.enqueueJob(f.sched.Current(), f.scheduleCloseWhenIdle)
		return
	}
	_ = closeRawFD(f.raw)
	f.state.Store(uint64(FdClosed))
	f.closeFinished.FillIfEmpty(struct{}{})
}

// Replace transitions Open -> Replaced, clears readiness (filling with
// Closed), and returns the raw descriptor to a new owner.
func (f *Fd) Replace() (int, error) {
	if !f.state.TryTransition(uint64(FdOpen), uint64(FdReplaced)) {
		return 0, &BadFdTransition{Name: f.name, From: f.State(), To: FdReplaced}
	}
	for dir := Direction(0); dir < 2; dir++ {
		if f.slots[dir].iv != nil {
			f.sched.unregisterFdDir(f, dir)
			f.deliverReady(dir, Closed)
		}
	}
	return f.raw, nil
}

func (f *Fd) sexp() sexpNode {
	return list("fd",
		atom("name:"+f.name),
		atom("kind:"+f.kind.String()),
		atom("state:"+f.State().String()),
		atom("in_flight:"+strconv.Itoa(int(f.inFlight.Load()))),
	)
}
