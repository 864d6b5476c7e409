package executor

import (
	"context"
	"sync/atomic"
	"time"

	slog "github.com/vearne/simplelog"
)

type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WorkerInfo is a point-in-time view of one worker.
type WorkerInfo struct {
	Name  string      `json:"name"`
	State WorkerState `json:"state"`
}

// CallerWorkerName is reported by WorkerName for tasks executed on the
// submitting goroutine.
const CallerWorkerName = "caller"

type workerNameKey struct{}

func withWorkerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerNameKey{}, name)
}

// WorkerName returns the name of the worker executing the task that owns ctx.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerNameKey{}).(string)
	return name
}

type worker struct {
	seq   int
	name  string
	pool  *BoundedPool
	state atomic.Int32

	// the handoff slot of an idle worker, written under pool.mu
	taskCh chan *FutureTask

	// guarded by pool.mu
	parked  bool
	current *FutureTask
}

func newWorker(pool *BoundedPool, seq int, name string) *worker {
	w := &worker{
		seq:    seq,
		name:   name,
		pool:   pool,
		taskCh: make(chan *FutureTask, 1),
	}
	w.state.Store(int32(WorkerRunning))
	return w
}

func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// start runs the worker loop until the worker is reclaimed or the pool
// shuts down. A nil first task means the worker starts parked.
func (w *worker) start(first *FutureTask) {
	p := w.pool
	defer p.wg.Done()
	slog.Debug("worker %v started", w.name)

	t := first
	for {
		if t == nil {
			var ok bool
			if t, ok = w.await(); !ok {
				slog.Debug("worker %v exiting", w.name)
				return
			}
		}
		w.execute(t)

		var exit bool
		p.mu.Lock()
		t, exit = p.nextLocked(w)
		p.mu.Unlock()
		if exit {
			slog.Debug("worker %v exiting", w.name)
			return
		}
	}
}

// await blocks a parked worker until it is handed a task, its idle timeout
// expires while the pool has more than CoreWorkers workers, or the pool
// shuts down.
func (w *worker) await() (*FutureTask, bool) {
	p := w.pool
	timer := time.NewTimer(p.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case t := <-w.taskCh:
			return t, true
		case <-p.stopCh:
		case <-timer.C:
		}

		p.mu.Lock()
		if !w.parked {
			// a submitter claimed this worker before it could leave
			p.mu.Unlock()
			return <-w.taskCh, true
		}
		if p.shutdown || len(p.workers) > p.cfg.CoreWorkers {
			reclaimed := !p.shutdown
			p.unparkLocked(w)
			p.retireLocked(w)
			p.mu.Unlock()
			if reclaimed {
				slog.Debug("worker %v idle for %v, reclaimed", w.name, p.cfg.IdleTimeout)
			}
			return nil, false
		}
		p.mu.Unlock()
		timer.Reset(p.cfg.IdleTimeout)
	}
}

func (w *worker) execute(t *FutureTask) {
	p := w.pool
	p.taskStarted(w, t)
	start := time.Now()
	ran := t.run(w.name)
	p.taskFinished(w, t, ran, time.Since(start))
}
