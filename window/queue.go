package window

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/gogpu/livecode"
)

// maxQueuedEvents bounds the queue so a stalled frame thread cannot grow it
// without limit. The oldest events are dropped first.
const maxQueuedEvents = 4096

// eventQueue is a FIFO of events shared between producers (input readers,
// Inject) and the frame thread that drains it.
type eventQueue struct {
	mu      sync.Mutex
	q       *queue.Queue
	dropped int
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: queue.New()}
}

func (e *eventQueue) push(ev livecode.Event) {
	e.mu.Lock()
	if e.q.Length() >= maxQueuedEvents {
		e.q.Remove()
		e.dropped++
	}
	e.q.Add(ev)
	e.mu.Unlock()
}

// drain removes and returns all queued events in arrival order.
func (e *eventQueue) drain() []livecode.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]livecode.Event, 0, n)
	for e.q.Length() > 0 {
		out = append(out, e.q.Remove().(livecode.Event))
	}
	return out
}

func (e *eventQueue) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Length()
}

// takeDropped returns and resets the number of events dropped on overflow.
func (e *eventQueue) takeDropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.dropped
	e.dropped = 0
	return n
}
