package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler()
	require.NoError(t, err)
	return s
}

func TestIvarFillAndPeek(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)

	_, ok := iv.Peek()
	assert.False(t, ok)
	assert.True(t, iv.IsEmpty())

	iv.Fill(42)

	v, ok := iv.Peek()
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.False(t, iv.IsEmpty())
	assert.Equal(t, 42, iv.ValueExn())
}

func TestIvarFillTwicePanics(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)
	iv.Fill(1)

	assert.PanicsWithValue(t, &AlreadyFilled{Name: ""}, func() { iv.Fill(2) })
}

func TestIvarFillIfEmptyIsNoopOnceFull(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)
	iv.FillIfEmpty(1)
	assert.NotPanics(t, func() { iv.FillIfEmpty(2) })
	assert.Equal(t, 1, iv.ValueExn())
}

func TestIvarValueExnPanicsWhenEmpty(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[string](s)
	assert.Panics(t, func() { iv.ValueExn() })
}

func TestIvarSubscribeBeforeFillRunsInOrder(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)

	var order []int
	iv.subscribe(s.Current(), func(v int) { order = append(order, v*10+1) })
	iv.subscribe(s.Current(), func(v int) { order = append(order, v*10+2) })

	iv.Fill(7)
	// subscribers are queued as jobs, not run synchronously
	assert.Empty(t, order)

	s.drainQueue()
	assert.Equal(t, []int{71, 72}, order)
}

func TestIvarSubscribeAfterFillIsQueuedNotSynchronous(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)
	iv.Fill(5)

	called := false
	iv.subscribe(s.Current(), func(int) { called = true })
	assert.False(t, called, "subscribing to an already-full ivar must not run synchronously")

	s.drainQueue()
	assert.True(t, called)
}

func TestIvarSexpReflectsState(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewNamedIvar[int](s, "counter")
	assert.Equal(t, "(ivar name:counter empty)", iv.sexp().String())
	iv.Fill(3)
	assert.Equal(t, "(ivar name:counter full:3)", iv.sexp().String())

	anon := NewIvar[int](s)
	assert.Equal(t, "(ivar name:anon empty)", anon.sexp().String())
}
