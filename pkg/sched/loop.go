// Package sched runs renderer work on a single cooperative loop.
//
// Every DOM mutation, every event dispatch and every timer callback is a
// task executed by Loop.Run one at a time, so a task never observes another
// half-finished. Tasks suspend only by returning; the loop itself is the
// yield point between them. Other goroutines, including syscall/js
// callbacks, hand work to the loop with Post or Do.
package sched

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when work is submitted to a stopped loop.
var ErrClosed = errors.New("sched: loop closed")

// Loop is a single-threaded task loop. Post, Do, Yield and AfterFunc are
// safe to call from any goroutine.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	idle   []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	running atomic.Bool
	ran     atomic.Uint64
	panics  atomic.Uint64

	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(loop *Loop) {
		if l != nil {
			loop.logger = l
		}
	}
}

// New creates a loop. It does nothing until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Post queues fn to run on the loop after every task posted before it.
// It never blocks. It reports false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

// Idle queues fn to run once the task queue is empty.
func (l *Loop) Idle(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.idle = append(l.idle, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

// Do runs fn on the loop and waits for its result. It must not be called
// from a task, which would wait on itself.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	ok := l.Post(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				result <- &PanicError{Value: r}
				panic(r)
			}
			result <- err
		}()
		err = fn()
	})
	if !ok {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The task may have completed right before shutdown.
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Yield waits until every task posted before the call has run.
func (l *Loop) Yield(ctx context.Context) error {
	return l.Do(ctx, func() error { return nil })
}

// Run executes tasks until ctx is cancelled or Close is called. Pending
// tasks are discarded on exit.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("sched: loop already running")
	}
	defer l.shutdown()

	for {
		if fn, ok := l.next(); ok {
			l.exec(fn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		}
	}
}

// next pops a task, or an idle callback when no task is queued.
func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}
	if len(l.tasks) > 0 {
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		return fn, true
	}
	if len(l.idle) > 0 {
		fn := l.idle[0]
		l.idle[0] = nil
		l.idle = l.idle[1:]
		return fn, true
	}
	return nil, false
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("task panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.ran.Add(1)
	fn()
}

// Close stops the loop. Run returns and later submissions fail.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.tasks = nil
	l.idle = nil
	close(l.done)
}

func (l *Loop) shutdown() {
	l.Close()
	l.running.Store(false)
}

// Running reports whether Run is executing.
func (l *Loop) Running() bool { return l.running.Load() }

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Pending returns the number of queued tasks and idle callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) + len(l.idle)
}

// Stats returns how many tasks ran and how many of them panicked.
func (l *Loop) Stats() (ran, panics uint64) {
	return l.ran.Load(), l.panics.Load()
}

// PanicError reports a panic inside a task run with Do.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "sched: task panicked"
}

// Sleep waits for d or until ctx is done. It does not occupy the loop.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
