package asyncrt

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnIsAlreadyDetermined(t *testing.T) {
	s := newTestScheduler(t)
	d := Return(s, "hi")
	v, ok := d.Peek()
	require.True(t, ok)
	assert.Equal(t, "hi", v)
}

func TestNeverStaysEmpty(t *testing.T) {
	s := newTestScheduler(t)
	d := Never[int](s)
	_, ok := d.Peek()
	assert.False(t, ok)
}

func TestUponOnDeterminedRunsAsJobNotSynchronously(t *testing.T) {
	s := newTestScheduler(t)
	d := Return(s, 1)

	ran := false
	Upon(d, func(int) { ran = true })
	assert.False(t, ran)

	s.drainQueue()
	assert.True(t, ran)
}

func TestUponOnPendingIvarFiresAfterFill(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)
	d := DeferredOf(iv)

	var got int
	Upon(d, func(v int) { got = v })
	s.drainQueue()
	assert.Zero(t, got)

	iv.Fill(9)
	s.drainQueue()
	assert.Equal(t, 9, got)
}

func TestBindChainsAsyncComputations(t *testing.T) {
	s := newTestScheduler(t)
	iv := NewIvar[int](s)
	d := Bind(DeferredOf(iv), func(v int) Deferred[string] {
		return Return(s, "n="+strconv.Itoa(v))
	})

	iv.Fill(3)
	s.drainQueue()

	v, ok := d.Peek()
	require.True(t, ok)
	assert.Equal(t, "n=3", v)
}

func TestMapTransformsValue(t *testing.T) {
	s := newTestScheduler(t)
	d := Map(Return(s, 4), func(v int) int { return v * v })
	s.drainQueue()
	v, ok := d.Peek()
	require.True(t, ok)
	assert.Equal(t, 16, v)
}

func TestAllGathersInInputOrder(t *testing.T) {
	s := newTestScheduler(t)
	a := NewIvar[int](s)
	b := NewIvar[int](s)
	c := NewIvar[int](s)

	all := All(s, []Deferred[int]{DeferredOf(a), DeferredOf(b), DeferredOf(c)})

	b.Fill(2)
	c.Fill(3)
	s.drainQueue()
	_, ok := all.Peek()
	assert.False(t, ok, "all must wait for every input")

	a.Fill(1)
	s.drainQueue()
	v, ok := all.Peek()
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, v)
}

func TestAllOfEmptySliceIsImmediatelyDetermined(t *testing.T) {
	s := newTestScheduler(t)
	d := All(s, nil)
	v, ok := d.Peek()
	require.True(t, ok)
	assert.Empty(t, v)
}

func TestAllUnitIgnoresValues(t *testing.T) {
	s := newTestScheduler(t)
	a := NewIvar[struct{}](s)
	d := AllUnit(s, []Deferred[struct{}]{DeferredOf(a)})
	a.Fill(struct{}{})
	s.drainQueue()
	_, ok := d.Peek()
	assert.True(t, ok)
}

func TestChoiceSettlesWithFirstWinner(t *testing.T) {
	s := newTestScheduler(t)
	a := NewIvar[string](s)
	b := NewIvar[string](s)

	d := Choice(s, []Deferred[string]{DeferredOf(a), DeferredOf(b)})

	b.Fill("second")
	s.drainQueue()

	v, ok := d.Peek()
	require.True(t, ok)
	assert.Equal(t, "second", v)

	// the losing branch is never torn down: filling it afterwards must
	// not panic or change the winner
	assert.NotPanics(t, func() { a.Fill("first") })
	s.drainQueue()
	v, ok = d.Peek()
	require.True(t, ok)
	assert.Equal(t, "second", v)
}
