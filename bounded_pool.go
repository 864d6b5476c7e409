package executor

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	slog "github.com/vearne/simplelog"
)

/*
   BoundedPool keeps between CoreWorkers and MaxWorkers workers.
   Dispatch rules for a submission, in order:
   1. an idle worker exists: hand the task to it
   2. fewer than MaxWorkers workers: start one with the task
   3. the queue has room: enqueue the task (FIFO)
   4. apply the OverflowPolicy (reject, run on the caller, or block)
   A worker above CoreWorkers that stays idle for IdleTimeout exits.
*/

type BoundedPoolOption struct {
	cfg     Config
	metrics *Metrics
}

type Option func(*BoundedPoolOption)

func WithCoreWorkers(n int) Option {
	return func(o *BoundedPoolOption) {
		o.cfg.CoreWorkers = n
	}
}

func WithMaxWorkers(n int) Option {
	return func(o *BoundedPoolOption) {
		o.cfg.MaxWorkers = n
	}
}

func WithTaskQueueCap(taskQueueCap int) Option {
	return func(o *BoundedPoolOption) {
		o.cfg.QueueCapacity = taskQueueCap
	}
}

func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(o *BoundedPoolOption) {
		o.cfg.OverflowPolicy = policy
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(o *BoundedPoolOption) {
		o.cfg.IdleTimeout = d
	}
}

func WithNamePrefix(prefix string) Option {
	return func(o *BoundedPoolOption) {
		o.cfg.NamePrefix = prefix
	}
}

// WithMetrics reports pool activity through m.
func WithMetrics(m *Metrics) Option {
	return func(o *BoundedPoolOption) {
		o.metrics = m
	}
}

// Stats is a snapshot of a pool. Completed counts tasks that produced a
// value, Failed those that produced a TaskError.
type Stats struct {
	LiveWorkers    int   `json:"live_workers"`
	IdleWorkers    int   `json:"idle_workers"`
	RunningWorkers int   `json:"running_workers"`
	PeakWorkers    int   `json:"peak_workers"`
	PeakRunning    int   `json:"peak_running"`
	QueueLength    int   `json:"queue_length"`
	QueueCapacity  int   `json:"queue_capacity"`
	Submitted      int64 `json:"submitted"`
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	Cancelled      int64 `json:"cancelled"`
	Rejected       int64 `json:"rejected"`
	CallerRuns     int64 `json:"caller_runs"`
	Shutdown       bool  `json:"shutdown"`
}

type BoundedPool struct {
	cfg     Config
	metrics *Metrics

	// mu guards everything below up to the counters
	mu          sync.Mutex
	queue       *list.List
	workers     map[*worker]struct{}
	idle        []*worker
	running     int
	seq         int
	peakLive    int
	peakRunning int
	shutdown    bool
	immediate   bool
	// spaceCh is closed and replaced whenever a blocked submitter may retry
	spaceCh chan struct{}

	wg         sync.WaitGroup
	stopCh     chan struct{}
	terminated chan struct{}
	isShutdown *AtomicBool

	// parent of every task context, cancelled by an immediate shutdown
	ctx    context.Context
	cancel context.CancelFunc

	submitted  atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	cancelled  atomic.Int64
	rejected   atomic.Int64
	callerRuns atomic.Int64
}

func NewBoundedPool(ctx context.Context, opts ...Option) (*BoundedPool, error) {
	return NewBoundedPoolFromConfig(ctx, DefaultConfig(), opts...)
}

// NewBoundedPoolFromConfig builds a pool from cfg with opts applied on top.
// The core workers are running when it returns.
func NewBoundedPoolFromConfig(ctx context.Context, cfg Config, opts ...Option) (*BoundedPool, error) {
	o := &BoundedPoolOption{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	p := &BoundedPool{
		cfg:        o.cfg,
		metrics:    o.metrics,
		queue:      list.New(),
		workers:    make(map[*worker]struct{}, o.cfg.MaxWorkers),
		spaceCh:    make(chan struct{}),
		stopCh:     make(chan struct{}),
		terminated: make(chan struct{}),
		isShutdown: NewAtomicBool(false),
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.mu.Lock()
	for i := 0; i < p.cfg.CoreWorkers; i++ {
		p.spawnLocked(nil)
	}
	p.gaugesLocked()
	p.mu.Unlock()

	slog.Debug("BoundedPool %v started, core:%v, max:%v, queue:%v, policy:%v",
		p.cfg.NamePrefix, p.cfg.CoreWorkers, p.cfg.MaxWorkers, p.cfg.QueueCapacity, p.cfg.OverflowPolicy)
	return p, nil
}

func (p *BoundedPool) Config() Config {
	return p.cfg
}

func (p *BoundedPool) Submit(task Callable) (Future, error) {
	return p.SubmitContext(context.Background(), task)
}

// SubmitContext is Submit with a bound on how long PolicyBlock may wait.
// ctx does not reach the task; cancel the returned Future for that.
func (p *BoundedPool) SubmitContext(ctx context.Context, task Callable) (Future, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if p.IsShutdown() {
		return nil, ErrPoolShutdown
	}

	for {
		p.mu.Lock()
		if p.shutdown {
			p.mu.Unlock()
			return nil, ErrPoolShutdown
		}
		if t := p.dispatchLocked(task); t != nil {
			p.mu.Unlock()
			p.submitted.Add(1)
			p.metrics.submitted(p.cfg.NamePrefix)
			return t, nil
		}

		switch p.cfg.OverflowPolicy {
		case PolicyReject:
			p.mu.Unlock()
			p.rejected.Add(1)
			p.metrics.rejected(p.cfg.NamePrefix)
			slog.Debug("BoundedPool %v saturated, reject task", p.cfg.NamePrefix)
			return nil, ErrCapacityExceeded
		case PolicyCallerRuns:
			p.mu.Unlock()
			return p.runOnCaller(task), nil
		default:
			wait := p.spaceCh
			p.mu.Unlock()
			select {
			case <-wait:
			case <-p.stopCh:
				return nil, ErrPoolShutdown
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// dispatchLocked applies rules 1-3. It returns nil when the pool is saturated.
func (p *BoundedPool) dispatchLocked(c Callable) *FutureTask {
	var t *FutureTask
	switch {
	case len(p.idle) > 0:
		t = p.newTaskLocked(c)
		w := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		w.parked = false
		w.taskCh <- t
	case len(p.workers) < p.cfg.MaxWorkers:
		t = p.newTaskLocked(c)
		p.spawnLocked(t)
	case p.queue.Len() < p.cfg.QueueCapacity:
		t = p.newTaskLocked(c)
		t.queuedAt = time.Now()
		t.elem = p.queue.PushBack(t)
		slog.Debug("add task to queue, length:%v", p.queue.Len())
	default:
		return nil
	}
	p.gaugesLocked()
	return t
}

func (p *BoundedPool) newTaskLocked(c Callable) *FutureTask {
	t := NewFutureTask(p.ctx, c)
	t.owner = p
	return t
}

// runOnCaller executes the task on the submitting goroutine. The returned
// future is already resolved.
func (p *BoundedPool) runOnCaller(c Callable) Future {
	t := NewFutureTask(p.ctx, c)
	p.submitted.Add(1)
	p.callerRuns.Add(1)
	p.metrics.submitted(p.cfg.NamePrefix)
	p.metrics.callerRan(p.cfg.NamePrefix)
	slog.Debug("BoundedPool %v saturated, run task %v on caller", p.cfg.NamePrefix, t.ID())

	start := time.Now()
	t.run(CallerWorkerName)
	p.record(t, time.Since(start))
	return t
}

func (p *BoundedPool) spawnLocked(first *FutureTask) *worker {
	p.seq++
	w := newWorker(p, p.seq, fmt.Sprintf("%s-%d", p.cfg.NamePrefix, p.seq))
	p.workers[w] = struct{}{}
	if len(p.workers) > p.peakLive {
		p.peakLive = len(p.workers)
	}
	if first == nil {
		p.parkLocked(w)
	}
	p.wg.Add(1)
	go w.start(first)
	return w
}

// nextLocked hands the worker its next queued task. With an empty queue the
// worker is parked, or retired if the pool is shutting down; exit is true in
// the latter case.
func (p *BoundedPool) nextLocked(w *worker) (t *FutureTask, exit bool) {
	if t = p.popLocked(); t != nil {
		return t, false
	}
	if p.shutdown {
		p.retireLocked(w)
		return nil, true
	}
	p.parkLocked(w)
	return nil, false
}

func (p *BoundedPool) popLocked() *FutureTask {
	e := p.queue.Front()
	if e == nil {
		return nil
	}
	t := p.queue.Remove(e).(*FutureTask)
	t.elem = nil
	p.broadcastLocked()
	p.gaugesLocked()
	return t
}

// removeQueued implements taskRemover for FutureTask.Cancel.
func (p *BoundedPool) removeQueued(t *FutureTask) bool {
	p.mu.Lock()
	if t.elem == nil {
		p.mu.Unlock()
		return false
	}
	p.queue.Remove(t.elem)
	t.elem = nil
	p.broadcastLocked()
	p.gaugesLocked()
	p.mu.Unlock()

	p.cancelled.Add(1)
	p.metrics.discarded(p.cfg.NamePrefix)
	slog.Debug("task %v cancelled while queued", t.ID())
	return true
}

func (p *BoundedPool) parkLocked(w *worker) {
	w.parked = true
	w.setState(WorkerIdle)
	p.idle = append(p.idle, w)
	p.broadcastLocked()
}

func (p *BoundedPool) unparkLocked(w *worker) {
	w.parked = false
	for i, iw := range p.idle {
		if iw == w {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return
		}
	}
}

func (p *BoundedPool) retireLocked(w *worker) {
	delete(p.workers, w)
	w.setState(WorkerTerminated)
	p.broadcastLocked()
	p.gaugesLocked()
}

func (p *BoundedPool) broadcastLocked() {
	close(p.spaceCh)
	p.spaceCh = make(chan struct{})
}

func (p *BoundedPool) gaugesLocked() {
	p.metrics.gauges(p.cfg.NamePrefix, len(p.workers), p.running, p.queue.Len())
}

func (p *BoundedPool) taskStarted(w *worker, t *FutureTask) {
	p.mu.Lock()
	w.setState(WorkerRunning)
	w.current = t
	if p.immediate {
		t.isCancelled.Set(true)
		t.cancel()
	}
	p.running++
	if p.running > p.peakRunning {
		p.peakRunning = p.running
	}
	p.gaugesLocked()
	p.mu.Unlock()

	if !t.queuedAt.IsZero() {
		p.metrics.waited(p.cfg.NamePrefix, time.Since(t.queuedAt))
	}
}

func (p *BoundedPool) taskFinished(w *worker, t *FutureTask, ran bool, took time.Duration) {
	p.mu.Lock()
	w.current = nil
	p.running--
	p.gaugesLocked()
	p.mu.Unlock()

	if !ran {
		// cancelled after it was handed to this worker
		p.cancelled.Add(1)
		p.metrics.discarded(p.cfg.NamePrefix)
		return
	}
	p.record(t, took)
}

func (p *BoundedPool) record(t *FutureTask, took time.Duration) {
	r := t.Get()
	outcome := outcomeOf(r)
	switch outcome {
	case outcomeSuccess:
		p.completed.Add(1)
	case outcomeCancelled:
		p.cancelled.Add(1)
	default:
		p.failed.Add(1)
		var te *TaskError
		if errors.As(r.Err, &te) && te.Panic != nil {
			slog.Warn("task %v panicked: %v", t.ID(), te.Panic)
		}
	}
	p.metrics.completed(p.cfg.NamePrefix, outcome, took)
}

// Shutdown stops accepting tasks and lets accepted ones finish.
// It does not wait; see WaitTerminate and ShutdownAndWait.
func (p *BoundedPool) Shutdown() {
	p.initiate(ShutdownGraceful)
}

// ShutdownNow stops accepting tasks, discards queued ones and cancels the
// context of running ones. It does not wait.
func (p *BoundedPool) ShutdownNow() {
	p.initiate(ShutdownImmediate)
}

// ShutdownAndWait shuts the pool down in the given mode and returns once
// every worker has terminated. Calling it again is harmless; an immediate
// call after a graceful one escalates it.
func (p *BoundedPool) ShutdownAndWait(mode ShutdownMode) {
	p.initiate(mode)
	<-p.terminated
}

// ShutdownContext is ShutdownAndWait bounded by ctx.
func (p *BoundedPool) ShutdownContext(ctx context.Context, mode ShutdownMode) error {
	p.initiate(mode)
	select {
	case <-p.terminated:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (p *BoundedPool) initiate(mode ShutdownMode) {
	p.mu.Lock()
	if !p.shutdown {
		p.shutdown = true
		p.isShutdown.Set(true)
		close(p.stopCh)
		go func() {
			p.wg.Wait()
			close(p.terminated)
		}()
		slog.Debug("BoundedPool %v shutdown, mode:%v", p.cfg.NamePrefix, mode)
	}

	var discarded []*FutureTask
	escalate := mode == ShutdownImmediate && !p.immediate
	if escalate {
		p.immediate = true
		for e := p.queue.Front(); e != nil; e = e.Next() {
			t := e.Value.(*FutureTask)
			t.elem = nil
			discarded = append(discarded, t)
		}
		p.queue.Init()
		for w := range p.workers {
			if w.current != nil {
				w.current.isCancelled.Set(true)
			}
		}
		p.gaugesLocked()
	}
	p.mu.Unlock()

	if escalate {
		p.cancel()
		for _, t := range discarded {
			if t.discard() {
				p.cancelled.Add(1)
				p.metrics.discarded(p.cfg.NamePrefix)
			}
		}
		slog.Debug("BoundedPool %v discarded %v queued tasks", p.cfg.NamePrefix, len(discarded))
	}
}

func (p *BoundedPool) IsShutdown() bool {
	return p.isShutdown.IsTrue()
}

// IsTerminated reports whether shutdown has completed.
func (p *BoundedPool) IsTerminated() bool {
	select {
	case <-p.terminated:
		return true
	default:
		return false
	}
}

// WaitTerminate waits for all workers to exit, starting a graceful
// shutdown first if none was requested.
func (p *BoundedPool) WaitTerminate() {
	if !p.IsShutdown() {
		p.Shutdown()
	}
	<-p.terminated
}

func (p *BoundedPool) CurrentGCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *BoundedPool) TaskQueueCap() int {
	return p.cfg.QueueCapacity
}

func (p *BoundedPool) TaskQueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

func (p *BoundedPool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		LiveWorkers:    len(p.workers),
		IdleWorkers:    len(p.idle),
		RunningWorkers: p.running,
		PeakWorkers:    p.peakLive,
		PeakRunning:    p.peakRunning,
		QueueLength:    p.queue.Len(),
		QueueCapacity:  p.cfg.QueueCapacity,
		Shutdown:       p.shutdown,
	}
	p.mu.Unlock()

	s.Submitted = p.submitted.Load()
	s.Completed = p.completed.Load()
	s.Failed = p.failed.Load()
	s.Cancelled = p.cancelled.Load()
	s.Rejected = p.rejected.Load()
	s.CallerRuns = p.callerRuns.Load()
	return s
}

// Workers lists the live workers in creation order.
func (p *BoundedPool) Workers() []WorkerInfo {
	p.mu.Lock()
	ws := make([]*worker, 0, len(p.workers))
	for w := range p.workers {
		ws = append(ws, w)
	}
	p.mu.Unlock()

	sort.Slice(ws, func(i, j int) bool { return ws[i].seq < ws[j].seq })
	infos := make([]WorkerInfo, len(ws))
	for i, w := range ws {
		infos[i] = WorkerInfo{Name: w.name, State: w.State()}
	}
	return infos
}
