package executor

import "sync/atomic"

type AtomicBool struct {
	v atomic.Bool
}

func NewAtomicBool(b bool) *AtomicBool {
	ab := &AtomicBool{}
	ab.v.Store(b)
	return ab
}

func (b *AtomicBool) Set(v bool) {
	b.v.Store(v)
}

func (b *AtomicBool) IsTrue() bool {
	return b.v.Load()
}

// CompareAndSet sets the flag to new only if it currently holds old.
func (b *AtomicBool) CompareAndSet(old, new bool) bool {
	return b.v.CompareAndSwap(old, new)
}
