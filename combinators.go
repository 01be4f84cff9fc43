package asyncrt

import "time"

// How selects the execution mode of a sequence combinator.
type How int

const (
	// Sequential is the default: the next element's callback runs only
	// after the previous element's Deferred is determined.
	Sequential How = iota
	// Parallel starts every element's callback immediately; results are
	// still gathered in input order.
	Parallel
)

// Iter runs f over every element of items, in input order, determining the
// returned Deferred once every invocation has completed. In Sequential
// mode each f(items[i+1]) is not invoked until the Deferred returned by
// f(items[i]) is determined; in Parallel mode every f(items[i]) is invoked
// up front.
func Iter[T any](sched *Scheduler, items []T, how How, f func(T) Deferred[struct{}]) Deferred[struct{}] {
	if len(items) == 0 {
		return Return(sched, struct{}{})
	}
	if how == Parallel {
		ds := make([]Deferred[struct{}], len(items))
		for i, it := range items {
			ds[i] = f(it)
		}
		return AllUnit(sched, ds)
	}
	// Sequential: chain via Bind so the next call only starts once the
	// previous Deferred is determined.
	var step func(i int) Deferred[struct{}]
	step = func(i int) Deferred[struct{}] {
		if i >= len(items) {
			return Return(sched, struct{}{})
		}
		return Bind(f(items[i]), func(struct{}) Deferred[struct{}] { return step(i + 1) })
	}
	return step(0)
}

// MapSeq applies f to every element of items, preserving input order in
// the resulting slice regardless of how.
func MapSeq[T, U any](sched *Scheduler, items []T, how How, f func(T) Deferred[U]) Deferred[[]U] {
	if len(items) == 0 {
		return Return(sched, []U{})
	}
	results := make([]U, len(items))
	if how == Parallel {
		ds := make([]Deferred[struct{}], len(items))
		for i, it := range items {
			i, it := i, it
			ds[i] = Map(f(it), func(u U) struct{} {
				results[i] = u
				return struct{}{}
			})
		}
		return Map(AllUnit(sched, ds), func(struct{}) []U { return results })
	}
	var step func(i int) Deferred[struct{}]
	step = func(i int) Deferred[struct{}] {
		if i >= len(items) {
			return Return(sched, struct{}{})
		}
		return Bind(f(items[i]), func(u U) Deferred[struct{}] {
			results[i] = u
			return step(i + 1)
		})
	}
	return Map(step(0), func(struct{}) []U { return results })
}

// FilterSeq keeps the elements of items for which f determines true,
// preserving input order.
func FilterSeq[T any](sched *Scheduler, items []T, how How, f func(T) Deferred[bool]) Deferred[[]T] {
	kept := MapSeq(sched, items, how, func(it T) Deferred[bool] { return f(it) })
	return Map(kept, func(flags []bool) []T {
		out := make([]T, 0, len(items))
		for i, keep := range flags {
			if keep {
				out = append(out, items[i])
			}
		}
		return out
	})
}

// FilterMapSeq applies f to every element, keeping the Some results in
// input order.
func FilterMapSeq[T, U any](sched *Scheduler, items []T, how How, f func(T) Deferred[Option[U]]) Deferred[[]U] {
	mapped := MapSeq(sched, items, how, f)
	return Map(mapped, func(opts []Option[U]) []U {
		out := make([]U, 0, len(opts))
		for _, o := range opts {
			if o.Present {
				out = append(out, o.Value)
			}
		}
		return out
	})
}

// FoldSeq threads an accumulator through items via f, in input order.
// Folding is inherently order-dependent (each step consumes the previous
// step's accumulator), so unlike the other sequence combinators, `how` has
// no effect here and is accepted only for call-site symmetry with Iter/
// MapSeq/FilterSeq/FilterMapSeq.
func FoldSeq[T, A any](sched *Scheduler, items []T, how How, init A, f func(A, T) Deferred[A]) Deferred[A] {
	var step func(i int, acc A) Deferred[A]
	step = func(i int, acc A) Deferred[A] {
		if i >= len(items) {
			return Return(sched, acc)
		}
		return Bind(f(acc, items[i]), func(next A) Deferred[A] { return step(i+1, next) })
	}
	return step(0, init)
}

// Option is a minimal Some/None carrier used by FilterMapSeq, mirroring
// the source language's Option type without requiring the standard
// library to grow one.
type Option[T any] struct {
	Value   T
	Present bool
}

// Some wraps v as a present Option.
func Some[T any](v T) Option[T] { return Option[T]{Value: v, Present: true} }

// None returns an absent Option.
func None[T any]() Option[T] { return Option[T]{} }

// WithTimeout is sugar for choice(map(d, Ok), map(Clock.after(span),
// timeout)): it is determined with the value of d if d wins the race, or
// with *TimeoutError if the span elapses first. The losing branch is not
// torn down (see the Open Question on `choice` in DESIGN.md); if d's
// underlying resource must be released on timeout, the caller must do so
// explicitly.
func WithTimeout[T any](d Deferred[T], span time.Duration) Deferred[Result[T]] {
	sched := d.Scheduler()
	ok := Map(d, func(v T) Result[T] { return Result[T]{Value: v} })
	timeout := Map(sched.Clock().After(span), func(struct{}) Result[T] {
		return Result[T]{Err: &TimeoutError{Message: "asyncrt: operation timed out"}}
	})
	return Choice(sched, []Deferred[Result[T]]{ok, timeout})
}

// Result carries either a value or an error, used by WithTimeout since the
// core has no typed failure channel on Deferred itself (failures route
// through the monitor tree, not through values, per §4.4).
type Result[T any] struct {
	Value T
	Err   error
}
