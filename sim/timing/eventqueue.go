package timing

import (
	"container/heap"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/vpsim/sim/id"
)

// EventQueue is a queue of events ordered by time. Equal-time events come out
// in the order they were pushed, with secondary events after primary ones.
type EventQueue struct {
	sync.Mutex
	events eventHeap
	seqGen id.IDGenerator
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueue {
	q := &EventQueue{
		events: make(eventHeap, 0),
		seqGen: id.NewIDGenerator(),
	}
	heap.Init(&q.events)

	return q
}

// Push adds an event to the event queue. An event that is already pending is
// rejected rather than duplicated.
func (q *EventQueue) Push(evt *Event) error {
	q.Lock()
	defer q.Unlock()

	if evt.pending {
		return errors.Wrapf(ErrAlreadyScheduled,
			"event %d @ %d", evt.seq, evt.Time)
	}

	evt.seq = q.seqGen.Generate()
	evt.pending = true
	heap.Push(&q.events, evt)

	return nil
}

// Pop removes and returns the next event, or nil if the queue is empty.
func (q *EventQueue) Pop() *Event {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*Event)
}

// Peek returns the event in front of the queue without removing it, or nil if
// the queue is empty.
func (q *EventQueue) Peek() *Event {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

// PeekTime returns the time of the next event. The second value is false when
// the queue is empty.
func (q *EventQueue) PeekTime() (VTime, bool) {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return TimeUnspecified, false
	}

	return q.events[0].Time, true
}

// Remove takes a pending event out of the queue. It returns false if the event
// is not in this queue.
func (q *EventQueue) Remove(evt *Event) bool {
	q.Lock()
	defer q.Unlock()

	if !evt.pending ||
		evt.index < 0 ||
		evt.index >= len(q.events) ||
		q.events[evt.index] != evt {
		return false
	}

	heap.Remove(&q.events, evt.index)

	return true
}

// Len returns the number of event in the queue
func (q *EventQueue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}

type eventHeap []*Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	if h[i].Secondary != h[j].Secondary {
		return !h[i].Secondary
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	evt := x.(*Event)
	evt.index = len(*h)
	*h = append(*h, evt)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	evt.index = -1
	evt.pending = false

	return evt
}
