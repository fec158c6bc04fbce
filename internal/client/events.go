package client

import "sync"

// eventQueue holds host callbacks until the host drains them on its own
// goroutine. Producers are the session goroutine and pion's track goroutines.
type eventQueue struct {
	mu     sync.Mutex
	events []func()
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	q.events = append(q.events, fn)
	q.mu.Unlock()
}

func (q *eventQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	fn := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return fn, true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
