package asyncrt

import (
	"container/heap"
	"time"
)

// clockEvent is a (trigger_time, ivar_to_fill) pair kept in a priority
// structure ordered by trigger_time; firing fills the ivar with unit.
// seq breaks ties by insertion order, since two events scheduled for the
// same instant should fire in the order they were registered.
type clockEvent struct {
	when time.Time
	seq  uint64
	iv   *Ivar[struct{}]
}

// timerHeap is a min-heap of clockEvents ordered by (when, seq), giving
// O(log n) insertion and O(log n) extract-min via container/heap.
type timerHeap []clockEvent

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(clockEvent)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Clock is the sorted structure of pending time-triggered jobs described
// by §4.5. It is owned exclusively by its Scheduler.
type Clock struct {
	sched   *Scheduler
	heap    timerHeap
	nextSeq uint64
	now     func() time.Time
}

func newClock(sched *Scheduler) *Clock {
	return &Clock{sched: sched, now: time.Now}
}

// After allocates an ivar, inserts (now+span, ivar) into the priority
// structure, and returns its Deferred.
func (c *Clock) After(span time.Duration) Deferred[struct{}] {
	return c.At(c.now().Add(span))
}

// At is After with an absolute trigger time.
func (c *Clock) At(when time.Time) Deferred[struct{}] {
	iv := NewIvar[struct{}](c.sched)
	c.nextSeq++
	heap.Push(&c.heap, clockEvent{when: when, seq: c.nextSeq, iv: iv})
	return DeferredOf(iv)
}

// Every reschedules f every span, stopping if f raises into the current
// monitor (the reschedule itself is a job running in that monitor, so a
// panic inside f is delivered and the reschedule that would have followed
// it never happens).
func (c *Clock) Every(span time.Duration, f func()) {
	monitor := c.sched.Current()
	var tick func()
	tick = func() {
		c.sched.enqueueJob(monitor, func() {
			f()
			Upon(c.After(span), func(struct{}) { tick() })
		})
	}
	Upon(c.After(span), func(struct{}) { tick() })
}

// nextDeadline returns the trigger time of the earliest pending event and
// true, or the zero time and false if the clock is empty.
func (c *Clock) nextDeadline() (time.Time, bool) {
	if len(c.heap) == 0 {
		return time.Time{}, false
	}
	return c.heap[0].when, true
}

// fireDue fills every event whose trigger_time <= now, returning the count
// fired (used for metrics).
func (c *Clock) fireDue(now time.Time) int {
	fired := 0
	for len(c.heap) > 0 && !c.heap[0].when.After(now) {
		ev := heap.Pop(&c.heap).(clockEvent)
		ev.iv.FillIfEmpty(struct{}{})
		fired++
	}
	return fired
}

// Len returns the number of pending clock events, for metrics and debug
// printing.
func (c *Clock) Len() int { return len(c.heap) }
