// Package queue coalesces concurrent invocations of the same keyed task.
//
// At most one task runs per key at a time. Callers that arrive while a task
// is pending receive the future of that task instead of starting a new one.
// The key is removed from the pending index before the future settles, so a
// Run issued after completion always starts a fresh task.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/reqflow/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrTaskPanicked is returned when a task panics instead of returning.
var ErrTaskPanicked = errors.New("task panicked")

// Task is a unit of work. It reports completion exactly once by returning.
type Task[T any] func(ctx context.Context) (T, error)

// Option configures a Queue.
type Option func(*options)

type options struct {
	scheduler Scheduler
	logger    *zerolog.Logger
}

// WithScheduler sets how tasks are started. Defaults to GoScheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithLogger sets the queue logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Queue deduplicates keyed tasks. It is safe for concurrent use.
type Queue[T any] struct {
	mu        sync.Mutex
	pending   map[string]*Future[T]
	scheduler Scheduler
	logger    zerolog.Logger
}

// New creates an empty queue.
func New[T any](opts ...Option) *Queue[T] {
	o := options{scheduler: GoScheduler}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheduler == nil {
		o.scheduler = GoScheduler
	}

	logger := logging.NewLogger(logging.ComponentQueue)
	if o.logger != nil {
		logger = *o.logger
	}

	return &Queue[T]{
		pending:   make(map[string]*Future[T]),
		scheduler: o.scheduler,
		logger:    logger,
	}
}

// Scheduler returns the scheduler used to start tasks.
func (q *Queue[T]) Scheduler() Scheduler {
	return q.scheduler
}

// Run returns the future of the pending task for key, or schedules task and
// returns its future when none is pending. The task never runs on the
// caller's goroutine and receives a context that is not cancelled with ctx.
func (q *Queue[T]) Run(ctx context.Context, key string, task Task[T]) *Future[T] {
	queueRuns.Inc()

	q.mu.Lock()
	if f, ok := q.pending[key]; ok {
		q.mu.Unlock()
		queueJoined.Inc()
		q.logger.Debug().Str("key", key).Msg("Joined pending task")
		return f
	}
	f := newFuture[T]()
	q.pending[key] = f
	q.mu.Unlock()

	queuePending.Inc()
	taskCtx := context.WithoutCancel(ctx)

	q.scheduler(func() {
		queueTasksStarted.Inc()
		val, err := q.execute(taskCtx, key, task)

		q.mu.Lock()
		delete(q.pending, key)
		q.mu.Unlock()
		queuePending.Dec()

		f.settle(val, err)
	})

	return f
}

// execute runs task and converts a panic into ErrTaskPanicked.
func (q *Queue[T]) execute(ctx context.Context, key string, task Task[T]) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Str("key", key).
				Interface("panic", r).
				Msg("Task panicked")
			var zero T
			val, err = zero, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(ctx)
}

// Pending reports whether a task for key is in flight.
func (q *Queue[T]) Pending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Len returns the number of in-flight tasks.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
