package asyncrt

import (
	"os"
	"time"
)

// shutdownState is NotShuttingDown or ShuttingDown(exit_code), per §4.7.
type shutdownState struct {
	active bool
	code   int
}

// AtShutdown registers a hook run during shutdown; order of execution
// across hooks is unspecified, but all hooks are awaited as one
// all_unit before the process exits.
func (s *Scheduler) AtShutdown(f func() Deferred[struct{}]) {
	s.shutdownMu.Lock()
	s.hooks = append(s.hooks, f)
	s.shutdownMu.Unlock()
}

// reconcileShutdown applies §4.7's reconciliation rule to an in-flight
// shutdown state cur against a newly requested code: if both are nonzero
// and differ, it reports the conflict via ok==false; if cur is 0 and code
// is nonzero, cur is upgraded to code; otherwise cur is returned
// unchanged. Kept pure (no locking, no side effects) so it can be
// exercised directly in tests, separate from Shutdown's goroutine
// spawning and eventual os.Exit.
func reconcileShutdown(cur shutdownState, code int) (next shutdownState, conflict *ShutdownConflict) {
	if !cur.active {
		return shutdownState{active: true, code: code}, nil
	}
	if cur.code != 0 && code != 0 && cur.code != code {
		return cur, &ShutdownConflict{Existing: cur.code, Proposed: code}
	}
	if cur.code == 0 && code != 0 {
		cur.code = code
	}
	return cur, nil
}

// Shutdown initiates (or reconciles with an in-flight) shutdown, per
// §4.7's rule: if already shutting down with exit code s', and both s
// and s' are nonzero and differ, the conflict is raised into the root
// monitor; if s' is 0 and s is nonzero, s' is upgraded to s; otherwise
// the call is a no-op.
func (s *Scheduler) Shutdown(code int) {
	s.shutdownMu.Lock()
	wasActive := s.shutdownState.active
	next, conflict := reconcileShutdown(s.shutdownState, code)
	s.shutdownState = next
	var hooks []func() Deferred[struct{}]
	if !wasActive && conflict == nil {
		hooks = append([]func() Deferred[struct{}]{}, s.hooks...)
	}
	s.shutdownMu.Unlock()

	if conflict != nil {
		s.root.deliver(conflict)
		return
	}
	if wasActive {
		return
	}

	s.state.TransitionAny([]uint64{uint64(StateAwake), uint64(StateRunning), uint64(StateSleeping)}, uint64(StateTerminating))
	s.wake()

	go s.runHooksWithTimeout(hooks)
}

// aggregateHookFailures collects the failures out of a batch of guarded
// hook results, returning nil if every hook succeeded. Kept pure so the
// aggregation itself can be exercised directly in tests, separate from
// runHooksWithTimeout's ExternalFill/timeout/os.Exit plumbing.
func aggregateHookFailures(results []Result[struct{}]) *AggregateError {
	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &AggregateError{Message: "at-shutdown hooks failed", Errors: failed}
}

// runHooksWithTimeout awaits all registered at-shutdown hooks as one
// all_unit, falling back to a forced exit(1) if they have not settled
// within the shutdown timeout. Each hook is individually guarded by
// tryWithDeferred so a panicking hook can't prevent the others from being
// awaited; if more than one hook fails, every failure is collected into an
// AggregateError and delivered to the root monitor rather than only the
// first one being observable.
func (s *Scheduler) runHooksWithTimeout(hooks []func() Deferred[struct{}]) {
	done := make(chan struct{})
	s.ExternalFill(func() {
		guarded := make([]Deferred[Result[struct{}]], len(hooks))
		for i, h := range hooks {
			guarded[i] = tryWithDeferred(s, h)
		}
		Upon(All(s, guarded), func(results []Result[struct{}]) {
			if agg := aggregateHookFailures(results); agg != nil {
				s.root.deliver(agg)
			}
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(s.opts.shutdownTimeout):
		s.logger().Log(LogEntry{Level: LevelWarn, Category: "shutdown", Message: "at-shutdown hooks did not complete within timeout"})
		os.Exit(1)
	}

	s.shutdownMu.Lock()
	code := s.shutdownState.code
	s.shutdownMu.Unlock()
	s.state.Store(uint64(StateTerminated))
	close(s.done)
	os.Exit(code)
}

// runShutdownDrain runs any jobs still queued (the hooks' own callbacks,
// primarily) once Run observes the Terminated state, so
// in-flight work started before shutdown was requested still gets to
// finish its current tick.
func (s *Scheduler) runShutdownDrain() {
	s.drainExternal()
	s.drainQueue()
}
