package asyncrt

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMonitorDefaultsParentToCurrent(t *testing.T) {
	s := newTestScheduler(t)
	m := s.CreateMonitor("child", nil)
	assert.Equal(t, s.root, m.Parent())
	assert.Equal(t, "child", m.Name())
}

func TestCreateMonitorWithStrictDebugNamesRequiresName(t *testing.T) {
	s, err := NewScheduler(WithStrictDebugNames(true))
	require.NoError(t, err)

	assert.Panics(t, func() { s.CreateMonitor("", nil) })
	assert.NotPanics(t, func() { s.CreateMonitor("named", nil) })
}

func TestDetachStopsBubbling(t *testing.T) {
	s := newTestScheduler(t)

	var parentSaw error
	parent := s.CreateMonitor("parent", s.root)
	parent.handler = func(exn error) { parentSaw = exn }

	child := s.CreateMonitor("child", parent)
	child.Detach()

	assert.Nil(t, child.Parent())

	child.deliver(errors.New("boom"))
	assert.Nil(t, parentSaw, "a detached monitor with no handler must not bubble to its old parent")
}

func TestDeliverBubblesToFirstHandler(t *testing.T) {
	s := newTestScheduler(t)

	var got error
	grandparent := s.CreateMonitor("grandparent", s.root)
	grandparent.handler = func(exn error) { got = exn }

	parent := s.CreateMonitor("parent", grandparent)
	child := s.CreateMonitor("child", parent)

	sentinel := errors.New("sentinel")
	child.deliver(sentinel)

	assert.Same(t, sentinel, got)
}

func TestTryWithCatchesPanicAsResultError(t *testing.T) {
	s := newTestScheduler(t)

	d := TryWith(s, func() int {
		panic("kaboom")
	})

	r, ok := d.Peek()
	require.True(t, ok)
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "kaboom")
}

func TestTryWithReturnsValueOnSuccess(t *testing.T) {
	s := newTestScheduler(t)
	d := TryWith(s, func() int { return 7 })
	r, ok := d.Peek()
	require.True(t, ok)
	assert.NoError(t, r.Err)
	assert.Equal(t, 7, r.Value)
}

func TestTryWithSyncReturnClaimsResultBeforeLaterAsyncException(t *testing.T) {
	s := newTestScheduler(t)

	var parentSaw error
	parent := s.CreateMonitor("parent", s.root)
	parent.handler = func(exn error) { parentSaw = exn }
	s.currentMonitor = parent

	var asyncMonitor *Monitor
	d := TryWith(s, func() int {
		asyncMonitor = s.Current() // the child TryWith installed
		return 7
	})

	r, ok := d.Peek()
	require.True(t, ok)
	assert.NoError(t, r.Err)
	assert.Equal(t, 7, r.Value)

	// Async work started inside f (still recorded against the child
	// monitor) panics only after f already returned synchronously.
	s.enqueueJob(asyncMonitor, func() { panic("too late") })
	s.drainQueue()

	r, ok = d.Peek()
	require.True(t, ok)
	assert.NoError(t, r.Err, "the sync return already claimed the result; a later async exception must not overwrite it")

	require.Error(t, parentSaw, "the late exception must bubble to the parent instead of being silently absorbed")
	assert.Contains(t, parentSaw.Error(), "too late")
}

func TestTryWithDeferredResolvesOkOnCompletion(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)

	d := tryWithDeferred(s, func() Deferred[int] { return DeferredOf(iv) })
	_, ok := d.Peek()
	assert.False(t, ok, "d is not determined until the inner Deferred is")

	iv.Fill(9)
	s.drainQueue()

	r, ok := d.Peek()
	require.True(t, ok)
	assert.NoError(t, r.Err)
	assert.Equal(t, 9, r.Value)
}

func TestTryWithDeferredCatchesAsyncExceptionBeforeCompletion(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)

	var asyncMonitor *Monitor
	d := tryWithDeferred(s, func() Deferred[int] {
		asyncMonitor = s.Current()
		return DeferredOf(iv)
	})

	s.enqueueJob(asyncMonitor, func() { panic("hook blew up") })
	s.drainQueue()

	r, ok := d.Peek()
	require.True(t, ok)
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "hook blew up")

	// the inner Deferred settling afterward must not overwrite the result.
	iv.Fill(9)
	s.drainQueue()
	r, ok = d.Peek()
	require.True(t, ok)
	require.Error(t, r.Err)
}

func TestOneShotHandlerPropagatesSubsequentExceptionsToParent(t *testing.T) {
	s := newTestScheduler(t)

	var parentSaw error
	parent := s.CreateMonitor("parent", s.root)
	parent.handler = func(exn error) { parentSaw = exn }

	child := s.CreateMonitor("child", parent)
	var firstCaught error
	child.handler = func(exn error) {
		child.handler = nil // one-shot, mirroring TryWith's handler
		firstCaught = exn
	}

	child.deliver(errors.New("first"))
	assert.Error(t, firstCaught)
	assert.Nil(t, parentSaw)

	child.deliver(errors.New("second"))
	require.Error(t, parentSaw)
	assert.Equal(t, "second", parentSaw.Error())
}

func TestToErrorWrapsNonErrorPanicValues(t *testing.T) {
	err := toError("plain string")
	var panicErr PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "plain string", panicErr.Value)

	wrapped := errors.New("already an error")
	assert.Same(t, wrapped, toError(wrapped))
}

func TestMonitorRegistryTracksLiveChildrenWeakly(t *testing.T) {
	s := newTestScheduler(t)
	parent := s.CreateMonitor("parent", s.root)

	func() {
		child := s.CreateMonitor("child", parent)
		_ = child
		assert.Len(t, parent.children.live(), 1)
	}()

	runtime.GC()
	runtime.GC()

	// the child may or may not have been collected yet depending on GC
	// timing, but live() must never panic or include stale entries twice.
	assert.LessOrEqual(t, len(parent.children.live()), 1)
}

func TestMonitorSexpListsChildrenByName(t *testing.T) {
	s := newTestScheduler(t)
	parent := s.CreateMonitor("parent", s.root)
	_ = s.CreateMonitor("kid", parent)

	rendered := parent.sexp().String()
	assert.Contains(t, rendered, "name:parent")
	assert.Contains(t, rendered, "name:kid")
}
