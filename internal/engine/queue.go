package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/monitor"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeFlash is a scheduler tick.
	EventTypeFlash EventType = iota + 1
	// EventTypeTrigger is a probability sample that crossed the threshold.
	EventTypeTrigger
	// EventTypeLost reports that the probability stream ended.
	EventTypeLost
	// EventTypeStart records that flashing started.
	EventTypeStart
	// EventTypeStop records that flashing stopped; the selection is reset.
	EventTypeStop
	// EventTypeReset clears the selection.
	EventTypeReset
	// EventTypeBarrier is closed by the loop once every earlier event is done.
	EventTypeBarrier
)

// String returns a lower-case event name.
func (t EventType) String() string {
	switch t {
	case EventTypeFlash:
		return "flash"
	case EventTypeTrigger:
		return "trigger"
	case EventTypeLost:
		return "lost"
	case EventTypeStart:
		return "start"
	case EventTypeStop:
		return "stop"
	case EventTypeReset:
		return "reset"
	case EventTypeBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one unit of work for the Run loop.
//
// Gen ties flash and trigger events to the scheduler run or monitor
// attachment that produced them; the loop drops events whose producer has
// since been stopped.
type Event struct {
	Type   EventType
	Gen    uint64
	Flash  flash.Event
	Sample monitor.Sample
	Err    error

	done chan struct{} // barrier only
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so producers (the scheduler under its lock, the
// monitor under its handle lock) never block on the loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking; the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	q.events[0] = Event{} // release Err and barrier channel for GC

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// It is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
