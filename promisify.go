package asyncrt

import (
	"context"
	"time"
)

// OffloadSyscall runs fn on a new goroutine and resolves the returned
// Deferred back on the scheduler's own thread, for the rare genuinely
// blocking OS call that cannot be expressed as a nonblocking syscall
// triage through Fd.Syscall — e.g. DNS resolution, a blocking ioctl, or
// a third-party client library with no cancellable API. ctx governs
// cancellation; a panic or runtime.Goexit in fn rejects the result
// instead of crashing or hanging the scheduler.
func (s *Scheduler) OffloadSyscall(ctx context.Context, fn func(ctx context.Context) (any, error)) Deferred[Result[any]] {
	iv := NewIvar[Result[any]](s)

	go func() {
		completed := false

		select {
		case <-ctx.Done():
			completed = true
			s.fillFromGoroutine(iv, Result[any]{Err: ctx.Err()})
			return
		default:
		}

		defer func() {
			if rec := recover(); rec != nil {
				s.fillFromGoroutine(iv, Result[any]{Err: PanicError{Value: rec}})
			} else if !completed {
				s.fillFromGoroutine(iv, Result[any]{Err: ErrGoexit})
			}
		}()

		res, err := fn(ctx)
		completed = true
		if err != nil {
			s.fillFromGoroutine(iv, Result[any]{Err: err})
		} else {
			s.fillFromGoroutine(iv, Result[any]{Value: res})
		}
	}()

	return DeferredOf(iv)
}

// OffloadSyscallTimeout is OffloadSyscall with a relative timeout bound.
func (s *Scheduler) OffloadSyscallTimeout(parent context.Context, timeout time.Duration, fn func(ctx context.Context) (any, error)) Deferred[Result[any]] {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return s.OffloadSyscall(ctx, func(ctx context.Context) (any, error) {
		defer cancel()
		return fn(ctx)
	})
}

// OffloadSyscallDeadline is OffloadSyscall with an absolute deadline bound.
func (s *Scheduler) OffloadSyscallDeadline(parent context.Context, deadline time.Time, fn func(ctx context.Context) (any, error)) Deferred[Result[any]] {
	ctx, cancel := context.WithDeadline(parent, deadline)
	return s.OffloadSyscall(ctx, func(ctx context.Context) (any, error) {
		defer cancel()
		return fn(ctx)
	})
}
