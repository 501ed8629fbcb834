package sched

import (
	"container/heap"
	"fmt"
	"math"
)

// Event is a handle to a scheduled callback.
type Event struct {
	at        float64
	seq       uint64
	fn        func()
	index     int
	cancelled bool
	fired     bool
}

// At returns the virtual time the event is due.
func (ev *Event) At() float64 {
	return ev.at
}

// Pending reports whether the event is still waiting to fire.
func (ev *Event) Pending() bool {
	return ev != nil && !ev.cancelled && !ev.fired
}

type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x any) {
	ev := x.(*Event)
	ev.index = len(*q)
	*q = append(*q, ev)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*q = old[:n-1]
	return ev
}

// Scheduler is a virtual-time event loop. Events due at the same time run
// in the order they were scheduled.
type Scheduler struct {
	now     float64
	seq     uint64
	queue   eventQueue
	stopped bool
	fired   uint64
}

func New() *Scheduler {
	return &Scheduler{queue: make(eventQueue, 0, 64)}
}

// Now returns the current virtual time in seconds.
func (s *Scheduler) Now() float64 {
	return s.now
}

// Schedule runs fn after delay seconds of virtual time.
func (s *Scheduler) Schedule(delay float64, fn func()) *Event {
	if delay < 0 {
		panic(fmt.Sprintf("sched: negative delay %v", delay))
	}
	ev := &Event{at: s.now + delay, seq: s.seq, fn: fn}
	s.seq++
	heap.Push(&s.queue, ev)
	return ev
}

// Cancel removes the event from the queue. Cancelling a nil, fired or
// already cancelled event does nothing.
func (s *Scheduler) Cancel(ev *Event) {
	if !ev.Pending() {
		return
	}
	ev.cancelled = true
	if ev.index >= 0 && ev.index < len(s.queue) && s.queue[ev.index] == ev {
		heap.Remove(&s.queue, ev.index)
	}
}

// RunUntil fires events in time order until the queue is empty, the next
// event is due after end, or Stop is called. Unless stopped, the clock is
// left at end.
func (s *Scheduler) RunUntil(end float64) {
	s.stopped = false
	for len(s.queue) > 0 && !s.stopped {
		next := s.queue[0]
		if next.at > end {
			break
		}
		heap.Pop(&s.queue)
		s.now = next.at
		next.fired = true
		s.fired++
		next.fn()
	}
	if !s.stopped && s.now < end && !math.IsInf(end, 1) {
		s.now = end
	}
}

// Stop makes the running RunUntil return once the current callback is done.
func (s *Scheduler) Stop() {
	s.stopped = true
}

// Stopped reports whether Stop was called during the last run.
func (s *Scheduler) Stopped() bool {
	return s.stopped
}

// Pending returns the number of queued events.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Fired returns the number of events executed so far.
func (s *Scheduler) Fired() uint64 {
	return s.fired
}
