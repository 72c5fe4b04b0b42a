package queue

import (
	"context"
	"sync"
)

// Scheduler runs fn at some later point, never on the calling goroutine
// before returning. It is the deferral step that lets every caller attach
// continuations before a result can be delivered.
type Scheduler func(fn func())

// GoScheduler runs fn on a new goroutine.
func GoScheduler(fn func()) {
	go fn()
}

// Future is the eventual outcome of a task. It settles exactly once and every
// holder observes the same value and error.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	val       T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Defer returns a future settled with the result of fn, which is run by s.
func Defer[T any](s Scheduler, fn func() (T, error)) *Future[T] {
	if s == nil {
		s = GoScheduler
	}
	f := newFuture[T]()
	s(func() {
		f.settle(fn())
	})
	return f
}

// Failed returns a future that is already rejected with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.settle(zero, err)
	return f
}

// settle records the outcome, wakes Await callers and runs continuations in
// registration order. Continuations added while draining are run as well.
func (f *Future[T]) settle(val T, err error) {
	f.mu.Lock()
	f.val, f.err = val, err
	close(f.done)
	for len(f.callbacks) > 0 {
		callbacks := f.callbacks
		f.callbacks = nil
		f.mu.Unlock()
		for _, cb := range callbacks {
			cb(val, err)
		}
		f.mu.Lock()
	}
	f.settled = true
	f.mu.Unlock()
}

// Done returns a channel that is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done. Giving up on ctx does
// not stop the underlying task.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnSettled registers fn to be called with the outcome. Callbacks registered
// before settlement run in registration order on the settling goroutine;
// after settlement fn runs immediately on the caller's goroutine.
func (f *Future[T]) OnSettled(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	val, err := f.val, f.err
	f.mu.Unlock()
	fn(val, err)
}

// Then returns a future settled with fn applied to this future's outcome.
func (f *Future[T]) Then(fn func(T, error) (T, error)) *Future[T] {
	next := newFuture[T]()
	f.OnSettled(func(val T, err error) {
		next.settle(fn(val, err))
	})
	return next
}
