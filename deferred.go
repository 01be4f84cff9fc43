package asyncrt

// Deferred[T] is the read side of an Ivar[T] plus the combinator layer.
// There are two construction forms: backed by a mutable Ivar (the common
// case), or already-determined with a concrete value (an optimization that
// behaves observationally like a filled Ivar but allocates no subscriber
// list). Two Deferreds compare equal, by reference, only if they share an
// underlying Ivar; determined Deferreds have no identity beyond their value.
type Deferred[T any] struct {
	sched      *Scheduler
	iv         *Ivar[T]
	determined bool
	value      T
}

// Return produces a Deferred already determined with v.
func Return[T any](sched *Scheduler, v T) Deferred[T] {
	return Deferred[T]{sched: sched, determined: true, value: v}
}

// DeferredOf returns the read side of an existing Ivar.
func DeferredOf[T any](iv *Ivar[T]) Deferred[T] {
	return Deferred[T]{sched: iv.sched, iv: iv}
}

// Never returns a Deferred backed by a fresh Ivar that is never filled.
func Never[T any](sched *Scheduler) Deferred[T] {
	return DeferredOf(NewIvar[T](sched))
}

// Peek returns the value and true if the Deferred is determined.
func (d Deferred[T]) Peek() (T, bool) {
	if d.determined {
		return d.value, true
	}
	if d.iv == nil {
		var zero T
		return zero, false
	}
	return d.iv.Peek()
}

// IsDetermined reports whether the Deferred currently holds a value.
func (d Deferred[T]) IsDetermined() bool {
	_, ok := d.Peek()
	return ok
}

// Scheduler returns the Scheduler this Deferred is bound to.
func (d Deferred[T]) Scheduler() *Scheduler { return d.sched }

// Upon subscribes f to run once d is determined. If d is already
// determined, f does not run synchronously: a job (current_monitor, λ.
// f(v)) is pushed onto the job queue instead, so that every callback runs
// in its own job frame with bounded stack depth and routable exceptions.
// If d is still empty, the subscription (current_monitor, f) is appended
// to the underlying Ivar's subscriber list.
func Upon[T any](d Deferred[T], f func(T)) {
	monitor := d.sched.Current()
	if d.determined {
		v := d.value
		d.sched.enqueueJob(monitor, func() { f(v) })
		return
	}
	d.iv.subscribe(monitor, f)
}

// Bind allocates a result Ivar[U] r; upon d with v ↦ upon(f(v), r.Fill).
// If d is already determined and f(v) is already determined, the result
// is still routed through a job frame rather than shortcut synchronously,
// preserving the scheduler's job-boundary invariant (see Upon).
func Bind[T, U any](d Deferred[T], f func(T) Deferred[U]) Deferred[U] {
	r := NewIvar[U](d.sched)
	Upon(d, func(v T) {
		inner := f(v)
		Upon(inner, func(u U) { r.Fill(u) })
	})
	return DeferredOf(r)
}

// Map ≡ Bind(d, v ↦ Return(f(v))).
func Map[T, U any](d Deferred[T], f func(T) U) Deferred[U] {
	return Bind(d, func(v T) Deferred[U] { return Return(d.sched, f(v)) })
}

// All is determined with a slice of every input's value, in input order,
// once every input is determined. An empty input slice yields an
// already-determined empty slice.
func All[T any](sched *Scheduler, ds []Deferred[T]) Deferred[[]T] {
	if len(ds) == 0 {
		return Return(sched, []T{})
	}
	results := make([]T, len(ds))
	remaining := len(ds)
	r := NewIvar[[]T](sched)
	for i, d := range ds {
		i := i
		Upon(d, func(v T) {
			results[i] = v
			remaining--
			if remaining == 0 {
				r.Fill(results)
			}
		})
	}
	return DeferredOf(r)
}

// AllUnit is All without preserving values, for fan-in where only
// completion matters (e.g. at-shutdown hooks).
func AllUnit(sched *Scheduler, ds []Deferred[struct{}]) Deferred[struct{}] {
	return Map(All(sched, ds), func([]struct{}) struct{} { return struct{}{} })
}

// Choice (aka Choose) is determined with the value of the first input to
// become determined. The other subscriptions are left in place: they are
// effectively orphaned, with no cancellation (see the Open Question in
// DESIGN.md about this being intentional rather than a leak fix).
func Choice[T any](sched *Scheduler, ds []Deferred[T]) Deferred[T] {
	r := NewIvar[T](sched)
	for _, d := range ds {
		Upon(d, func(v T) { r.FillIfEmpty(v) })
	}
	return DeferredOf(r)
}
