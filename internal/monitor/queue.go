package monitor

import "sync"

// eventQueue is a bounded FIFO that drops its oldest entry when full.
type eventQueue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	size    int
	dropped uint64
}

func newEventQueue(capacity int) *eventQueue {
	return &eventQueue{buf: make([]Event, capacity)}
}

// push appends ev and reports whether an older event had to be dropped.
func (q *eventQueue) push(ev Event) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == len(q.buf) {
		q.buf[q.head] = Event{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		dropped = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++
	return dropped
}

func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return ev, true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *eventQueue) droppedTotal() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
