// Package dispatch provides the single execution context that owns display
// state.
//
// A Loop runs queued tasks one at a time, in submission order, on a single
// goroutine. Code that mutates shared display state only ever does so from
// inside a task, which serialises host configuration calls and file-change
// notifications without any lock around the state itself.
//
// Post is the cooperative hand-off used by background notifiers: it never
// blocks. Do is the synchronous form used by callers that need the result:
// it queues the task and waits for it to finish.
//
// Tasks must not call Do or Close on their own Loop; both wait for the loop
// goroutine and would deadlock. Tasks may call Post freely.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

var (
	// ErrClosed is returned when work is submitted to a closed Loop.
	ErrClosed = errors.New("dispatch loop closed")

	// ErrPanic wraps a panic recovered from a task run through Do.
	ErrPanic = errors.New("dispatch task panicked")
)

// Options configures a Loop.
type Options struct {
	// Logger receives reports of tasks that panicked. Nil discards them.
	Logger *log.Logger
}

// Loop is a single-consumer FIFO task queue with its own goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    *log.Logger
}

// New starts a Loop with default options.
func New() *Loop {
	return NewWithOptions(Options{})
}

// NewWithOptions starts a Loop.
func NewWithOptions(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Post queues fn without waiting. It reports false if the loop is closed,
// in which case fn will never run.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do queues fn and waits until it has run.
//
// If ctx ends first Do returns ctx.Err(), but fn stays queued and still runs
// in order. A panic inside fn is recovered and returned wrapped in ErrPanic.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	var taskErr error
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				taskErr = fmt.Errorf("%w: %v", ErrPanic, r)
			}
			close(done)
		}()
		fn()
	}
	if !l.Post(task) {
		return ErrClosed
	}

	select {
	case <-done:
		return taskErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks not yet started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting tasks, runs everything already queued and waits for
// the loop goroutine to exit. Close is idempotent.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		select {
		case l.wake <- struct{}{}:
		default:
		}
	})
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.runTask(fn)
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("dispatch: task panicked: %v", r)
		}
	}()
	fn()
}
