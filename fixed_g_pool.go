package executor

import (
	"context"
)

// NewFixedGPool returns a pool of exactly size workers. Submissions wait for
// queue space when every worker is busy and the queue is full.
// Options may change the queue capacity, overflow policy and name prefix;
// the worker count stays fixed.
func NewFixedGPool(ctx context.Context, size int, opts ...Option) ExecutorService {
	// check params
	if size <= 0 {
		size = 1
	}

	defaultOpts := &BoundedPoolOption{cfg: DefaultConfig()}
	defaultOpts.cfg.OverflowPolicy = PolicyBlock
	defaultOpts.cfg.NamePrefix = "fixed-worker"
	// Loop through each option
	for _, opt := range opts {
		opt(defaultOpts)
	}

	if defaultOpts.cfg.QueueCapacity < 0 {
		panic(ErrInvalidTaskQueueCap)
	}
	defaultOpts.cfg.CoreWorkers = size
	defaultOpts.cfg.MaxWorkers = size

	pool, err := NewBoundedPoolFromConfig(ctx, defaultOpts.cfg, WithMetrics(defaultOpts.metrics))
	if err != nil {
		panic(err)
	}
	return pool
}
