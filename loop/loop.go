// Package loop runs callbacks and timers one at a time on a single
// goroutine.
package loop

import (
	"context"
	"sync"
	"time"
)

// TimerID identifies a pending timer. The zero value is never issued.
type TimerID uint64

// Loop serializes work onto the goroutine running Run.
//
// Post, Do, AfterFunc and Cancel are safe from any goroutine. Do must not be
// called from a function already running on the loop.
//
// A timer fires in two steps: the time.AfterFunc callback checks that the
// timer is still registered and posts a wrapper, and the wrapper checks
// again on the loop before running fn. Cancel from the loop therefore
// always wins over a timer that has already expired but not yet run.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once

	mu          sync.Mutex // protects timers, nextTimerID
	timers      map[TimerID]*time.Timer
	nextTimerID TimerID
}

// New returns a loop with the given queue depth.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		queue:  make(chan func(), buffer),
		done:   make(chan struct{}),
		timers: make(map[TimerID]*time.Timer),
	}
}

// Run executes posted functions until ctx is cancelled. Pending timers are
// cancelled on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

func (l *Loop) stop() {
	l.once.Do(func() { close(l.done) })
	l.CancelAll()
}

// Post queues fn. It returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do queues fn and waits for it to finish. It returns false if the loop
// stopped before fn ran.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// AfterFunc runs fn on the loop after d unless the timer is cancelled first.
func (l *Loop) AfterFunc(d time.Duration, fn func()) TimerID {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextTimerID++
	id := l.nextTimerID

	l.timers[id] = time.AfterFunc(d, func() {
		if !l.registered(id) {
			return
		}
		l.Post(func() {
			l.mu.Lock()
			_, ok := l.timers[id]
			delete(l.timers, id)
			l.mu.Unlock()
			if ok {
				fn()
			}
		})
	})
	return id
}

func (l *Loop) registered(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.timers[id]
	return ok
}

// Cancel stops a pending timer. It returns true if the timer had not run.
func (l *Loop) Cancel(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(l.timers, id)
	return true
}

// CancelAll stops every pending timer.
func (l *Loop) CancelAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

// Pending returns the number of registered timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}
