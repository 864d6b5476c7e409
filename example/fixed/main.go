package main

import (
	"context"
	"fmt"
	"time"

	executor "github.com/vearne/boundedexecutor"
)

type SquareCallable struct {
	param int
}

func (m *SquareCallable) Call(ctx context.Context) *executor.GPResult {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return &executor.GPResult{Err: ctx.Err()}
	}
	return &executor.GPResult{Value: m.param * m.param}
}

func main() {
	/*
	   options:
	   executor.WithTaskQueueCap() : set capacity of task queue
	   executor.WithOverflowPolicy() : what Submit does when the queue is full
	*/
	pool := executor.NewFixedGPool(context.Background(), 10, executor.WithTaskQueueCap(10))
	futureCh := make(chan executor.Future, 100)

	go func() {
		defer close(futureCh)
		for i := 0; i < 100; i++ {
			// blocks while all 10 workers are busy and 10 tasks are waiting
			f, err := pool.Submit(&SquareCallable{param: i})
			if err != nil {
				fmt.Println("submit:", err)
				return
			}
			futureCh <- f
		}
	}()

	for f := range futureCh {
		result := f.Get()
		fmt.Println(f.ID(), result.Err, result.Value)
	}
	pool.Shutdown()
	pool.WaitTerminate()
}
