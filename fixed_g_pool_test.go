package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type squareCallable struct {
	param int
}

func (m *squareCallable) Call(ctx context.Context) *GPResult {
	time.Sleep(time.Millisecond)
	return &GPResult{Value: m.param * m.param}
}

func TestFixedGPool(t *testing.T) {
	pool := NewFixedGPool(context.Background(), 3, WithTaskQueueCap(2))
	bp := pool.(*BoundedPool)

	futures := make([]Future, 0, 20)
	for i := 0; i < 20; i++ {
		f, err := pool.Submit(&squareCallable{param: i})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		futures = append(futures, f)
	}
	for i, f := range futures {
		r := getWithin(t, f, 5*time.Second)
		if r.Err != nil || r.Value != i*i {
			t.Fatalf("task %d = %+v; want %d", i, r, i*i)
		}
	}

	s := bp.Stats()
	if s.PeakWorkers != 3 || s.LiveWorkers != 3 {
		t.Fatalf("Stats = %+v; want exactly 3 workers", s)
	}
	if pool.TaskQueueCap() != 2 {
		t.Fatalf("TaskQueueCap = %d; want 2", pool.TaskQueueCap())
	}

	pool.Shutdown()
	pool.WaitTerminate()
	if !pool.IsShutdown() {
		t.Fatal("IsShutdown = false")
	}
	if _, err := pool.Submit(&squareCallable{}); !errors.Is(err, ErrPoolShutdown) {
		t.Fatalf("Submit after shutdown err = %v; want ErrPoolShutdown", err)
	}
}

func TestFixedGPoolIgnoresWorkerCountOptions(t *testing.T) {
	pool := NewFixedGPool(context.Background(), 2, WithMaxWorkers(10), WithCoreWorkers(0))
	defer pool.WaitTerminate()

	cfg := pool.(*BoundedPool).Config()
	if cfg.CoreWorkers != 2 || cfg.MaxWorkers != 2 || cfg.OverflowPolicy != PolicyBlock {
		t.Fatalf("Config = %+v; want 2 blocking workers", cfg)
	}
}

func TestFixedGPoolInvalidQueueCap(t *testing.T) {
	defer func() {
		r := recover()
		err, _ := r.(error)
		if !errors.Is(err, ErrInvalidTaskQueueCap) {
			t.Fatalf("recovered %v; want ErrInvalidTaskQueueCap", r)
		}
	}()
	NewFixedGPool(context.Background(), 2, WithTaskQueueCap(-1))
	t.Fatal("NewFixedGPool accepted a negative queue capacity")
}

func TestSingleGPoolRunsInOrder(t *testing.T) {
	pool := NewSingleGPool(context.Background())
	defer pool.WaitTerminate()

	var (
		mu    sync.Mutex
		order []int
	)
	futures := make([]Future, 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		f, err := pool.Submit(CallableFunc(func(ctx context.Context) *GPResult {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return &GPResult{Value: WorkerName(ctx)}
		}))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		futures = append(futures, f)
	}
	for _, f := range futures {
		if r := getWithin(t, f, time.Second); r.Value != "fixed-worker-1" {
			t.Fatalf("task ran on %v; want fixed-worker-1", r.Value)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v; want ascending", order)
		}
	}
}
