package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFutureTaskResolvesOnce(t *testing.T) {
	f := NewFutureTask(context.Background(), ValueFunc(func(ctx context.Context) (any, error) {
		return 6 * 7, nil
	}))

	if _, ok := f.TryGet(); ok {
		t.Fatal("TryGet succeeded before the task ran")
	}
	if !f.run("w-1") {
		t.Fatal("run reported the task as cancelled")
	}
	if f.run("w-1") {
		t.Fatal("a task ran twice")
	}

	r, ok := f.TryGet()
	if !ok || r.Value != 42 || r.Err != nil {
		t.Fatalf("TryGet = %+v, %v; want 42, true", r, ok)
	}
	if got := f.Get(); got != r {
		t.Fatal("Get returned a different result than TryGet")
	}
	if !f.IsDone() || f.IsCancelled() {
		t.Fatalf("IsDone = %v, IsCancelled = %v", f.IsDone(), f.IsCancelled())
	}
	if f.Cancel() {
		t.Fatal("Cancel succeeded on a finished task")
	}
	if f.ID() == "" {
		t.Fatal("empty task id")
	}
}

func TestFutureTaskWrapsErrorsAndPanics(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		c         Callable
		wantPanic bool
	}{
		{
			name: "error",
			c: ValueFunc(func(ctx context.Context) (any, error) {
				return nil, errBoom
			}),
		},
		{
			name: "panic",
			c: CallableFunc(func(ctx context.Context) *GPResult {
				panic("kaboom")
			}),
			wantPanic: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFutureTask(context.Background(), tc.c)
			f.run("w-1")

			err := f.Get().Err
			if !errors.Is(err, ErrTaskFailed) {
				t.Fatalf("err = %v; want ErrTaskFailed", err)
			}
			var te *TaskError
			if !errors.As(err, &te) || te.TaskID != f.ID() {
				t.Fatalf("err = %#v; want *TaskError for %s", err, f.ID())
			}
			if tc.wantPanic {
				if te.Panic != "kaboom" {
					t.Fatalf("Panic = %v; want kaboom", te.Panic)
				}
			} else if !errors.Is(err, errBoom) {
				t.Fatalf("err = %v; want it to wrap errBoom", err)
			}
		})
	}
}

func TestFutureTaskNilResult(t *testing.T) {
	f := NewFutureTask(context.Background(), CallableFunc(func(ctx context.Context) *GPResult {
		return nil
	}))
	f.run("w-1")

	r := f.Get()
	if r == nil || r.Value != nil || r.Err != nil {
		t.Fatalf("Get = %+v; want empty result", r)
	}
}

func TestFutureTaskCancelPending(t *testing.T) {
	ran := false
	f := NewFutureTask(context.Background(), CallableFunc(func(ctx context.Context) *GPResult {
		ran = true
		return &GPResult{}
	}))

	if !f.Cancel() {
		t.Fatal("Cancel failed on a pending task")
	}
	if f.run("w-1") {
		t.Fatal("a cancelled task ran")
	}
	if ran {
		t.Fatal("task body executed after cancel")
	}
	if err := f.Get().Err; !errors.Is(err, ErrTaskCanceled) {
		t.Fatalf("err = %v; want ErrTaskCanceled", err)
	}
	if !f.IsCancelled() {
		t.Fatal("IsCancelled = false")
	}
}

func TestFutureTaskGetContext(t *testing.T) {
	f := NewFutureTask(context.Background(), ValueFunc(func(ctx context.Context) (any, error) {
		return "late", nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.GetContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetContext err = %v; want deadline exceeded", err)
	}
	if _, ok := f.GetWithTimeout(5 * time.Millisecond); ok {
		t.Fatal("GetWithTimeout resolved before the task ran")
	}

	go f.run("w-1")
	r, err := f.GetContext(context.Background())
	if err != nil || r.Value != "late" {
		t.Fatalf("GetContext = %+v, %v; want late", r, err)
	}
	select {
	case <-f.Done():
	default:
		t.Fatal("Done not closed after resolution")
	}
}

func TestFutureTaskConcurrentObservers(t *testing.T) {
	release := make(chan struct{})
	f := NewFutureTask(context.Background(), CallableFunc(func(ctx context.Context) *GPResult {
		<-release
		return &GPResult{Value: "shared"}
	}))

	const observers = 16
	results := make([]*GPResult, observers)
	var wg sync.WaitGroup
	for i := 0; i < observers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.Get()
		}(i)
	}

	go f.run("w-1")
	close(release)
	wg.Wait()

	for i, r := range results {
		if r != results[0] {
			t.Fatalf("observer %d saw a different result", i)
		}
	}
	if results[0].Value != "shared" {
		t.Fatalf("Value = %v; want shared", results[0].Value)
	}
}

func TestWorkerNameOutsideWorker(t *testing.T) {
	if name := WorkerName(context.Background()); name != "" {
		t.Fatalf("WorkerName = %q; want empty", name)
	}
}
