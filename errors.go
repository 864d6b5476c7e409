package executor

import (
	"errors"
	"fmt"
)

var (
	ErrTaskCanceled        = errors.New("task has been canceled")
	ErrTaskFailed          = errors.New("task failed")
	ErrPoolShutdown        = errors.New("pool has been shutdown")
	ErrCapacityExceeded    = errors.New("pool capacity exceeded")
	ErrNilTask             = errors.New("task must not be nil")
	ErrInvalidConfig       = errors.New("invalid pool config")
	ErrInvalidTaskQueueCap = errors.New("task queue capacity must not be negative")
)

// TaskError wraps a failure raised by a task while it was running.
// errors.Is(err, ErrTaskFailed) holds for every TaskError.
type TaskError struct {
	TaskID string
	Err    error
	// Panic is the recovered value when the task panicked.
	Panic any
}

func (e *TaskError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task %s panicked: %v", e.TaskID, e.Panic)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func (e *TaskError) Is(target error) bool {
	return target == ErrTaskFailed
}

// CancelError is the outcome of a task cancelled by its caller or discarded
// by an immediate shutdown. Cause is the error the task returned after it
// observed the cancellation, if any.
type CancelError struct {
	TaskID string
	Cause  error
}

func (e *CancelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("task %s canceled: %v", e.TaskID, e.Cause)
	}
	return fmt.Sprintf("task %s canceled", e.TaskID)
}

func (e *CancelError) Unwrap() error {
	return e.Cause
}

func (e *CancelError) Is(target error) bool {
	return target == ErrTaskCanceled
}
