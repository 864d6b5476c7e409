package executor

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	taskPending int32 = iota
	taskRunning
	taskDone
)

// taskRemover takes a pending task out of the queue it sits in.
type taskRemover interface {
	removeQueued(t *FutureTask) bool
}

type FutureTask struct {
	id string
	c  Callable

	state       atomic.Int32
	isCancelled *AtomicBool

	result *GPResult
	done   chan struct{}
	once   sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// guarded by the owning pool's mutex
	owner    taskRemover
	elem     *list.Element
	queuedAt time.Time
}

func NewFutureTask(ctx context.Context, c Callable) *FutureTask {
	t := FutureTask{}
	t.id = uuid.New().String()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.c = c
	t.done = make(chan struct{})
	t.isCancelled = NewAtomicBool(false)
	return &t
}

func (f *FutureTask) ID() string {
	return f.id
}

func (f *FutureTask) Get() *GPResult {
	<-f.done
	return f.result
}

func (f *FutureTask) GetContext(ctx context.Context) (*GPResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FutureTask) GetWithTimeout(timeout time.Duration) (*GPResult, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.result, true
	case <-timer.C:
		return nil, false
	}
}

func (f *FutureTask) TryGet() (*GPResult, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return nil, false
	}
}

func (f *FutureTask) Done() <-chan struct{} {
	return f.done
}

func (f *FutureTask) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *FutureTask) IsCancelled() bool {
	return f.isCancelled.IsTrue()
}

// Cancel removes a queued task so that it never runs, or signals a running
// task through its context. It reports false once the task has an outcome.
func (f *FutureTask) Cancel() bool {
	if f.state.CompareAndSwap(taskPending, taskDone) {
		if f.owner != nil {
			f.owner.removeQueued(f)
		}
		f.isCancelled.Set(true)
		f.cancel()
		f.complete(&GPResult{Err: &CancelError{TaskID: f.id}})
		return true
	}
	if f.state.Load() == taskRunning && !f.IsDone() {
		f.isCancelled.Set(true)
		f.cancel()
		return true
	}
	return false
}

// discard resolves a pending task that will never be run.
func (f *FutureTask) discard() bool {
	if !f.state.CompareAndSwap(taskPending, taskDone) {
		return false
	}
	f.isCancelled.Set(true)
	f.cancel()
	f.complete(&GPResult{Err: &CancelError{TaskID: f.id, Cause: ErrPoolShutdown}})
	return true
}

// run executes the task on the calling goroutine on behalf of the named
// worker. It reports false if the task was cancelled before it could start.
func (f *FutureTask) run(worker string) bool {
	if !f.state.CompareAndSwap(taskPending, taskRunning) {
		return false
	}
	defer f.cancel()
	r := f.call(withWorkerName(f.ctx, worker))
	f.state.Store(taskDone)
	f.complete(r)
	return true
}

func (f *FutureTask) call(ctx context.Context) (r *GPResult) {
	defer func() {
		if p := recover(); p != nil {
			r = &GPResult{Err: &TaskError{TaskID: f.id, Panic: p}}
		}
	}()
	r = f.c.Call(ctx)
	if r == nil {
		r = &GPResult{}
	}
	if r.Err != nil {
		if f.IsCancelled() {
			return &GPResult{Value: r.Value, Err: &CancelError{TaskID: f.id, Cause: r.Err}}
		}
		return &GPResult{Value: r.Value, Err: &TaskError{TaskID: f.id, Err: r.Err}}
	}
	return r
}

func (f *FutureTask) complete(r *GPResult) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}
