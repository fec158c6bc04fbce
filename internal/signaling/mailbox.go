package signaling

import "sync"

// mailbox is an unbounded FIFO of tasks drained by one goroutine.
//
// Post never blocks and never drops while the mailbox is open. After Close,
// Post reports false and queued tasks are still handed out until the queue
// is empty.
type mailbox struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool
	tasks    []func()
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.notEmpty = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) Post(task func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.tasks = append(m.tasks, task)
	m.notEmpty.Signal()
	return true
}

// next blocks until a task is available or the mailbox is closed and empty.
func (m *mailbox) next() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.tasks) == 0 && !m.closed {
		m.notEmpty.Wait()
	}
	if len(m.tasks) == 0 {
		return nil, false
	}
	task := m.tasks[0]
	m.tasks[0] = nil
	m.tasks = m.tasks[1:]
	if len(m.tasks) == 0 {
		m.tasks = nil
	}
	return task, true
}

func (m *mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notEmpty.Broadcast()
}

// run executes tasks in order until the mailbox is closed and drained.
func (m *mailbox) run() {
	for {
		task, ok := m.next()
		if !ok {
			return
		}
		task()
	}
}
