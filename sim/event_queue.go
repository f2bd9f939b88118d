package sim

import (
	"container/heap"
	"fmt"
)

// queuedEvent pairs an event with its scheduling sequence number.
type queuedEvent struct {
	ev  Event
	seq uint64
}

// eventHeap implements heap.Interface and orders events by timestamp,
// then by scheduling order.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].ev.Timestamp(), h[j].ev.Timestamp()
	if ti != tj {
		return ti < tj
	}
	// Stable FIFO tie-break keeps replays deterministic.
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queuedEvent{}
	*h = old[0 : n-1]
	return item
}

// EventQueue is the pending-event set of one replication.
// It owns the causality check: nothing may be scheduled before its clock.
type EventQueue struct {
	events  eventHeap
	clock   float64
	nextSeq uint64
}

// NewEventQueue creates an empty queue with its clock at 0.
func NewEventQueue() *EventQueue {
	q := &EventQueue{events: make(eventHeap, 0)}
	heap.Init(&q.events)
	return q
}

// Schedule inserts ev in O(log n). It fails with a *CausalityError when
// ev is timestamped before the queue clock.
func (q *EventQueue) Schedule(ev Event) error {
	if ev.Timestamp() < q.clock {
		return &CausalityError{Clock: q.clock, At: ev.Timestamp(), Kind: ev.Kind()}
	}
	q.nextSeq++
	heap.Push(&q.events, queuedEvent{ev: ev, seq: q.nextSeq})
	return nil
}

// PopNext removes and returns the earliest event and advances the clock to it.
// Returns nil when the queue is empty.
func (q *EventQueue) PopNext() Event {
	if q.events.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.events).(queuedEvent)
	q.clock = item.ev.Timestamp()
	return item.ev
}

// Advance moves the clock forward to t without popping anything.
func (q *EventQueue) Advance(t float64) error {
	if t < q.clock {
		return fmt.Errorf("%w: advance to %v before clock %v", ErrCausality, t, q.clock)
	}
	if next := q.Peek(); next != nil && t > next.Timestamp() {
		return fmt.Errorf("advance to %v would skip pending %s event at %v", t, next.Kind(), next.Timestamp())
	}
	q.clock = t
	return nil
}

// Peek returns the next event without removing it.
func (q *EventQueue) Peek() Event {
	if q.events.Len() == 0 {
		return nil
	}
	return q.events[0].ev
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int { return q.events.Len() }

// IsEmpty reports whether no events are pending.
func (q *EventQueue) IsEmpty() bool { return q.events.Len() == 0 }

// Clock returns the timestamp of the most recently popped event.
func (q *EventQueue) Clock() float64 { return q.clock }
