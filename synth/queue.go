package synth

import (
	"errors"
	"sync/atomic"
)

// ErrQueueCapacity is returned for a capacity that is not a power of two >= 2.
var ErrQueueCapacity = errors.New("synth: queue capacity must be a power of two >= 2")

// EventQueue is a bounded single-producer single-consumer ring. One goroutine
// may Push while the audio thread Pops; neither side blocks or allocates.
type EventQueue struct {
	buf  []Event
	mask uint64
	head atomic.Uint64 // next slot to read, owned by the consumer
	tail atomic.Uint64 // next slot to write, owned by the producer
}

func NewEventQueue(capacity int) (*EventQueue, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, ErrQueueCapacity
	}
	return &EventQueue{
		buf:  make([]Event, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Push enqueues ev. It returns false when the queue is full.
func (q *EventQueue) Push(ev Event) bool {
	t := q.tail.Load()
	if t-q.head.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[t&q.mask] = ev
	q.tail.Store(t + 1)
	return true
}

// Pop dequeues the oldest event.
func (q *EventQueue) Pop() (Event, bool) {
	h := q.head.Load()
	if h == q.tail.Load() {
		return Event{}, false
	}
	ev := q.buf[h&q.mask]
	q.head.Store(h + 1)
	return ev, true
}

// Len is a snapshot of the number of queued events.
func (q *EventQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

func (q *EventQueue) Cap() int { return len(q.buf) }
