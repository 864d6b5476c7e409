package executor

import (
	"context"
	"time"
)

type Callable interface {
	Call(ctx context.Context) *GPResult
}

// CallableFunc adapts an ordinary function to Callable.
type CallableFunc func(ctx context.Context) *GPResult

func (f CallableFunc) Call(ctx context.Context) *GPResult {
	return f(ctx)
}

// ValueFunc adapts a function returning (value, error) to Callable.
type ValueFunc func(ctx context.Context) (any, error)

func (f ValueFunc) Call(ctx context.Context) *GPResult {
	v, err := f(ctx)
	return &GPResult{Value: v, Err: err}
}

type Future interface {
	// Get blocks until the task has an outcome.
	Get() *GPResult
	// GetContext blocks until the task has an outcome or ctx is done.
	GetContext(ctx context.Context) (*GPResult, error)
	// GetWithTimeout reports false if no outcome arrived within timeout.
	GetWithTimeout(timeout time.Duration) (*GPResult, bool)
	// TryGet never blocks.
	TryGet() (*GPResult, bool)
	Done() <-chan struct{}
	IsCancelled() bool
	Cancel() bool
	IsDone() bool
	ID() string
}

type ExecutorService interface {
	// no longer accept new tasks, let accepted tasks finish
	Shutdown()
	Submit(task Callable) (Future, error)
	IsShutdown() bool
	// Wait for all the tasks to be completed
	WaitTerminate()
	TaskQueueCap() int
	TaskQueueLength() int
}
