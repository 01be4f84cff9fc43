package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scheduler.Shutdown ends in os.Exit once its hooks settle, so these tests
// exercise reconcileShutdown directly rather than calling Shutdown itself.

func TestReconcileShutdownFromNotShuttingDown(t *testing.T) {
	next, conflict := reconcileShutdown(shutdownState{}, 2)
	assert.Nil(t, conflict)
	assert.Equal(t, shutdownState{active: true, code: 2}, next)
}

func TestReconcileShutdownUpgradesZeroToNonzero(t *testing.T) {
	cur := shutdownState{active: true, code: 0}
	next, conflict := reconcileShutdown(cur, 3)
	assert.Nil(t, conflict)
	assert.Equal(t, shutdownState{active: true, code: 3}, next)
}

func TestReconcileShutdownIsNoopWhenAlreadyMatching(t *testing.T) {
	cur := shutdownState{active: true, code: 2}
	next, conflict := reconcileShutdown(cur, 2)
	assert.Nil(t, conflict)
	assert.Equal(t, cur, next)
}

func TestReconcileShutdownIsNoopWhenNewCodeIsZero(t *testing.T) {
	cur := shutdownState{active: true, code: 5}
	next, conflict := reconcileShutdown(cur, 0)
	assert.Nil(t, conflict)
	assert.Equal(t, cur, next)
}

func TestReconcileShutdownConflictOnDifferingNonzeroCodes(t *testing.T) {
	cur := shutdownState{active: true, code: 2}
	next, conflict := reconcileShutdown(cur, 3)
	require.NotNil(t, conflict)
	assert.Equal(t, 2, conflict.Existing)
	assert.Equal(t, 3, conflict.Proposed)
	assert.Equal(t, cur, next, "state must not change when a conflict is raised")
}

func TestShutdownConflictErrorMessage(t *testing.T) {
	err := &ShutdownConflict{Existing: 1, Proposed: 2}
	assert.Contains(t, err.Error(), "1")
	assert.Contains(t, err.Error(), "2")
}

func TestAtShutdownRegistersHooksInCallOrder(t *testing.T) {
	s := newTestScheduler(t)
	var order []int
	s.AtShutdown(func() Deferred[struct{}] {
		order = append(order, 1)
		return Return(s, struct{}{})
	})
	s.AtShutdown(func() Deferred[struct{}] {
		order = append(order, 2)
		return Return(s, struct{}{})
	})

	require.Len(t, s.hooks, 2)
	for _, h := range s.hooks {
		h()
	}
	assert.Equal(t, []int{1, 2}, order)
}

func TestAggregateHookFailuresIsNilWhenAllHooksSucceed(t *testing.T) {
	results := []Result[struct{}]{{}, {}, {}}
	assert.Nil(t, aggregateHookFailures(results))
}

func TestAggregateHookFailuresCollectsEveryFailure(t *testing.T) {
	errA := assert.AnError
	errB := errors.New("second hook failed")
	results := []Result[struct{}]{{}, {Err: errA}, {Err: errB}}

	agg := aggregateHookFailures(results)
	require.NotNil(t, agg)
	assert.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, agg, errA)
	assert.ErrorIs(t, agg, errB)
}

func TestShutdownStateSexpReflectsActiveFlagAndCode(t *testing.T) {
	idle := shutdownState{}
	assert.Equal(t, "(shutdown not_shutting_down)", idle.sexp().String())

	active := shutdownState{active: true, code: 2}
	assert.Equal(t, "(shutdown shutting_down code:2)", active.sexp().String())
}
