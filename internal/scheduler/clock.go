package scheduler

import (
	"container/heap"
	"time"
)

// Timer is a pending clock callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the callback was still pending.
	Stop() bool
}

// Clock supplies the time reference and timers the scheduler runs against.
// All callbacks must be delivered on the goroutine that drives the scheduler.
type Clock interface {
	Now() time.Duration
	AfterFunc(d time.Duration, f func()) Timer
}

// ManualClock is a Clock that only moves when told to. Offline rendering
// and tests drive the scheduler with it.
type ManualClock struct {
	now    time.Duration
	seq    uint64
	timers timerHeap
}

func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) Now() time.Duration { return c.now }

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTimer{clock: c, when: c.now + d, seq: c.seq, f: f, index: -1}
	heap.Push(&c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline order.
// During each callback Now reports that timer's deadline.
func (c *ManualClock) Advance(d time.Duration) {
	c.AdvanceTo(c.now + d)
}

func (c *ManualClock) AdvanceTo(target time.Duration) {
	for len(c.timers) > 0 && c.timers[0].when <= target {
		t := heap.Pop(&c.timers).(*manualTimer)
		if t.when > c.now {
			c.now = t.when
		}
		t.f()
	}
	if target > c.now {
		c.now = target
	}
}

// Next returns the deadline of the earliest pending timer.
func (c *ManualClock) Next() (time.Duration, bool) {
	if len(c.timers) == 0 {
		return 0, false
	}
	return c.timers[0].when, true
}

// Pending is the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int { return len(c.timers) }

type manualTimer struct {
	clock *ManualClock
	when  time.Duration
	seq   uint64
	f     func()
	index int
}

func (t *manualTimer) Stop() bool {
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.clock.timers, t.index)
	return true
}

type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when == h[j].when {
		return h[i].seq < h[j].seq
	}
	return h[i].when < h[j].when
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
