package asyncrt

import "fmt"

// Ivar[T] is a write-once cell: initially Empty, becomes Full exactly once,
// and tracks subscribers waiting for the fill. It is the leaf primitive the
// rest of the runtime (Deferred, the job queue, Fd readiness slots, clock
// events) is built from.
//
// Ivar is not safe for concurrent mutation: all fills and subscriptions
// happen on the owning Scheduler's own goroutine. Code running on another
// goroutine must route through Scheduler.ExternalFill.
type Ivar[T any] struct {
	sched       *Scheduler
	name        string
	full        bool
	value       T
	subscribers []ivarSubscriber[T]
}

type ivarSubscriber[T any] struct {
	monitor  *Monitor
	callback func(T)
}

// NewIvar returns an empty cell owned by sched.
func NewIvar[T any](sched *Scheduler) *Ivar[T] {
	return &Ivar[T]{sched: sched}
}

// NewNamedIvar is like NewIvar but attaches a debug name used by the
// S-expression renderer (see sexp.go).
func NewNamedIvar[T any](sched *Scheduler, name string) *Ivar[T] {
	return &Ivar[T]{sched: sched, name: name}
}

// Fill transitions the cell from Empty to Full(v) and enqueues every
// subscriber callback as a job under the subscriber's recorded monitor, in
// registration order. Filling an already-Full cell is a programming error:
// it panics with *AlreadyFilled, which the scheduler's job boundary will
// route to the offending job's monitor if Fill is called from within one.
func (iv *Ivar[T]) Fill(v T) {
	if iv.full {
		panic(&AlreadyFilled{Name: iv.name})
	}
	iv.full = true
	iv.value = v
	subs := iv.subscribers
	iv.subscribers = nil // drained: the cell holds no references to them afterwards
	for _, sub := range subs {
		sub := sub
		iv.sched.enqueueJob(sub.monitor, func() { sub.callback(v) })
	}
}

// FillIfEmpty is a no-op if the cell is already Full; otherwise behaves
// exactly like Fill.
func (iv *Ivar[T]) FillIfEmpty(v T) {
	if iv.full {
		return
	}
	iv.Fill(v)
}

// IsEmpty reports whether the cell has not yet been filled.
func (iv *Ivar[T]) IsEmpty() bool { return !iv.full }

// Peek returns the value and true if the cell is Full, or the zero value
// and false otherwise.
func (iv *Ivar[T]) Peek() (T, bool) {
	return iv.value, iv.full
}

// ValueExn returns the cell's value, panicking with *TypeError if it is
// still Empty. Intended for call sites that have already established
// (via IsDetermined or a prior subscription) that the value is available.
func (iv *Ivar[T]) ValueExn() T {
	if !iv.full {
		panic(&TypeError{Message: "asyncrt: ValueExn called on an empty ivar"})
	}
	return iv.value
}

// subscribe appends a (monitor, callback) pair to the subscriber list if
// the cell is empty, or immediately schedules the callback as a job (under
// the current monitor) if it is already full. This is the only place
// subscriptions are created; Deferred.Upon and the combinators all funnel
// through it.
func (iv *Ivar[T]) subscribe(monitor *Monitor, callback func(T)) {
	if iv.full {
		v := iv.value
		iv.sched.enqueueJob(monitor, func() { callback(v) })
		return
	}
	iv.subscribers = append(iv.subscribers, ivarSubscriber[T]{monitor: monitor, callback: callback})
}

// sexp renders the ivar's state as an S-expression, per the external
// debug-printing contract.
func (iv *Ivar[T]) sexp() sexpNode {
	name := iv.name
	if name == "" {
		name = "anon"
	}
	if !iv.full {
		return list("ivar", atom("name:"+name), atom("empty"))
	}
	return list("ivar", atom("name:"+name), atom(fmt.Sprintf("full:%v", iv.value)))
}
