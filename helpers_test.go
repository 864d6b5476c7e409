package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before timeout")
}

func newTestPool(t *testing.T, opts ...Option) *BoundedPool {
	t.Helper()

	opts = append([]Option{WithNamePrefix("test-worker")}, opts...)
	p, err := NewBoundedPool(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewBoundedPool: %v", err)
	}
	t.Cleanup(func() { p.ShutdownAndWait(ShutdownImmediate) })
	return p
}

// gate holds tasks until it is opened. Tasks give up when their context
// is cancelled.
type gate struct {
	ch      chan struct{}
	started atomic.Int32
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) open() {
	close(g.ch)
}

func (g *gate) task(v any) Callable {
	return CallableFunc(func(ctx context.Context) *GPResult {
		g.started.Add(1)
		select {
		case <-g.ch:
			return &GPResult{Value: v}
		case <-ctx.Done():
			return &GPResult{Err: ctx.Err()}
		}
	})
}

// stubborn ignores cancellation.
func (g *gate) stubborn(v any) Callable {
	return CallableFunc(func(ctx context.Context) *GPResult {
		g.started.Add(1)
		<-g.ch
		return &GPResult{Value: v}
	})
}

func mustSubmit(t *testing.T, p *BoundedPool, c Callable) Future {
	t.Helper()

	f, err := p.Submit(c)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return f
}

func getWithin(t *testing.T, f Future, timeout time.Duration) *GPResult {
	t.Helper()

	r, ok := f.GetWithTimeout(timeout)
	if !ok {
		t.Fatalf("future %s not resolved within %v", f.ID(), timeout)
	}
	return r
}
