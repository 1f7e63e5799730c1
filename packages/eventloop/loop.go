package eventloop

import (
	"errors"
	"sync"
)

// ErrRunning is returned when Run is entered while the loop is already running.
var ErrRunning = errors.New("event loop is already running")

// Loop runs queued callbacks on the goroutine that called Run.
type Loop struct {
	mu         sync.Mutex
	queue      []func() error
	registered int
	running    bool
	wakeup     chan struct{}
}

// New creates an idle loop.
func New() *Loop {
	return &Loop{
		wakeup: make(chan struct{}, 1),
	}
}

// RegisterCallback reserves one future callback. The returned function must
// be called exactly once; it may be called from any goroutine and appends
// the callback to the tail of the queue.
func (l *Loop) RegisterCallback() func(func() error) {
	l.mu.Lock()
	l.registered++
	l.mu.Unlock()

	var once sync.Once
	return func(f func() error) {
		called := false
		once.Do(func() {
			called = true
			l.mu.Lock()
			l.queue = append(l.queue, f)
			l.registered--
			l.mu.Unlock()
			l.signal()
		})
		if !called {
			panic("eventloop: registered callback enqueued twice")
		}
	}
}

// Post appends fn to the tail of the queue. Code already on the stack
// finishes before fn runs.
func (l *Loop) Post(fn func()) {
	l.RegisterCallback()(func() error {
		fn()
		return nil
	})
}

// Run calls fn and then drains the queue until it is empty and no
// registered callback is outstanding. The first error returned by fn or a
// callback stops the loop and is returned.
func (l *Loop) Run(fn func() error) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		outstanding := l.registered
		l.mu.Unlock()

		if len(batch) == 0 {
			if outstanding == 0 {
				return nil
			}
			<-l.wakeup
			continue
		}

		for i, f := range batch {
			if err := f(); err != nil {
				l.requeue(batch[i+1:])
				return err
			}
		}
	}
}

// Pending reports the number of queued callbacks plus outstanding registrations.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + l.registered
}

// requeue puts unexecuted callbacks back at the head so a later Run sees them.
func (l *Loop) requeue(rest []func() error) {
	if len(rest) == 0 {
		return
	}
	l.mu.Lock()
	l.queue = append(append([]func() error{}, rest...), l.queue...)
	l.mu.Unlock()
}

func (l *Loop) signal() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}
