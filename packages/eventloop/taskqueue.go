package eventloop

import "sync"

// TaskQueue delivers any number of tasks from a worker goroutine to the loop,
// in the order they were queued, while holding the loop open until Close.
type TaskQueue struct {
	loop *Loop

	mu        sync.Mutex
	tasks     []func() error
	enqueue   func(func() error)
	scheduled bool
	closed    bool
}

// NewTaskQueue creates a queue bound to l. Close must be called once the
// producer is done, or Run never returns.
func (l *Loop) NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		loop:    l,
		enqueue: l.RegisterCallback(),
	}
}

// Queue adds a task. Tasks queued after Close are dropped.
func (q *TaskQueue) Queue(task func() error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, task)
	if q.scheduled {
		q.mu.Unlock()
		return
	}
	q.scheduled = true
	enqueue := q.enqueue
	q.enqueue = q.loop.RegisterCallback()
	q.mu.Unlock()

	enqueue(q.drain)
}

// Close releases the queue's hold on the loop. Tasks already queued still run.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	enqueue := q.enqueue
	q.enqueue = nil
	q.mu.Unlock()

	enqueue(func() error { return nil })
}

func (q *TaskQueue) drain() error {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.scheduled = false
	q.mu.Unlock()

	for _, task := range tasks {
		if err := task(); err != nil {
			return err
		}
	}
	return nil
}
