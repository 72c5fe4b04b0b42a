package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/reqflow/pkg/queue"
	"github.com/Sternrassler/reqflow/pkg/transport"
)

// manualScheduler queues scheduled functions until Flush is called.
type manualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *manualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

func (s *manualScheduler) Flush() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

// countingTransport answers every request with body and counts calls. When
// release is set, calls block until it is closed.
type countingTransport struct {
	calls   atomic.Int32
	body    any
	err     error
	release chan struct{}

	mu   sync.Mutex
	last transport.Request
}

func (t *countingTransport) Do(ctx context.Context, req transport.Request) (*transport.Reply, error) {
	t.calls.Add(1)
	t.mu.Lock()
	t.last = req
	t.mu.Unlock()

	if t.release != nil {
		<-t.release
	}
	if t.err != nil {
		return nil, t.err
	}
	return &transport.Reply{Body: t.body, Status: transport.StatusSuccess, Handle: "handle"}, nil
}

func (t *countingTransport) Calls() int {
	return int(t.calls.Load())
}

func (t *countingTransport) Last() transport.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func newTestClient(t *testing.T, tr transport.Transport, mutate ...func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(tr)
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func await(t *testing.T, f *queue.Future[*Response]) (*Response, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := f.Await(ctx)
	if err == context.DeadlineExceeded {
		t.Fatal("future did not settle")
	}
	return resp, err
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
