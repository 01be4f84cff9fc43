// Package asyncrt is a single-threaded, cooperative asynchronous execution
// runtime: write-once cells ([Ivar]) and their read-only combinator layer
// ([Deferred]) sit on top of a [Scheduler] event loop that owns one FIFO job
// queue, a [Clock] timing wheel, a per-platform [FdWatcher], and a
// dynamically-scoped error-handler tree rooted at each Scheduler ([Monitor]).
//
// # Architecture
//
// Every computation that can block — a syscall, a timer, a value supplied by
// another goroutine — is represented as a Deferred[T] backed by exactly one
// Ivar[T]: empty until filled exactly once, at which point every subscriber
// is enqueued as a job under its recorded Monitor. The combinators (Bind,
// Map, All, AllUnit, Choice, Never, Upon, and the sequence operators Iter,
// MapSeq, FilterSeq, FilterMapSeq, FoldSeq) build new Deferreds out of old
// ones without ever blocking the owning goroutine.
//
// The Scheduler's Run method drains the job queue, fires due Clock events,
// computes the next poll timeout, and polls the platform FdWatcher
// (epoll on Linux, kqueue on Darwin, IOCP on Windows), translating readiness
// events back into Fd subscriptions. Fd manages the Open/Close_requested/
// Closed/Replaced lifecycle of a raw descriptor together with its in-flight
// syscall counter, so Close can wait for outstanding syscalls to drain before
// the descriptor is actually closed.
//
// # Monitors
//
// Monitor forms a tree that exceptions bubble up through — modeled on DOM
// event bubbling rather than Go's lexical defer/recover, because a
// suspension point (an Upon callback running later, on a different job)
// does not preserve a recover() stack frame. TryWith installs a one-shot
// absorbing handler and returns a Deferred[Result[T]] of the guarded call.
//
// # Concurrency
//
// The Scheduler's own state (queue, clock, monitor tree, Fd table) is
// touched only from the goroutine running Run; there are no internal locks
// on that path. The one sanctioned bridge from any other goroutine is
// Scheduler.ExternalFill, used by OffloadSyscall (for syscalls that must
// block a real goroutine) and by shutdown hooks.
//
// # Shutdown
//
// Shutdown(code) requests termination with a reconciled exit code: the
// first call wins, a later call upgrading 0 to a nonzero code is honored,
// and a later call proposing a different nonzero code is reported to the
// root Monitor as a conflict rather than silently overwritten. Hooks
// registered via AtShutdown run concurrently with a timeout fallback.
//
// # Debug representation
//
// SchedulerState, FdState, Fd, Ivar, Monitor, and the shutdown state all
// expose an S-expression rendering (sexp.go) with both a compact machine
// form (String) and an indented human form (Pretty) — the one external
// representation contract carried by this package.
package asyncrt
