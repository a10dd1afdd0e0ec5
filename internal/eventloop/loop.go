// Package eventloop runs tasks and timer callbacks one at a time on a single
// goroutine. Playback state is only ever touched from that goroutine.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("eventloop: closed")

type Loop struct {
	tasks  chan func()
	done   chan struct{}
	origin time.Time
	once   sync.Once
}

func New() *Loop {
	return &Loop{
		tasks:  make(chan func(), 64),
		done:   make(chan struct{}),
		origin: time.Now(),
	}
}

// Run executes posted tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case f := <-l.tasks:
			f()
		}
	}
}

// Close stops the loop. Tasks still queued are dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues f. It reports false if the loop has stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Do runs f on the loop and waits for it to return. It must not be called
// from a task already running on the loop.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Now is the monotonic time elapsed since the loop was created.
func (l *Loop) Now() time.Duration {
	return time.Since(l.origin)
}

// Timer is a callback scheduled with AfterFunc.
type Timer struct {
	t         *time.Timer
	cancelled atomic.Bool
}

// Stop prevents the callback from running. It reports whether the call
// cancelled a callback that had not started yet.
func (t *Timer) Stop() bool {
	if t.cancelled.Swap(true) {
		return false
	}
	t.t.Stop()
	return true
}

// AfterFunc posts f to the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, f func()) *Timer {
	timer := &Timer{}
	timer.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if timer.cancelled.Load() {
				return
			}
			timer.cancelled.Store(true)
			f()
		})
	})
	return timer
}
