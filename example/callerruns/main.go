package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	executor "github.com/vearne/boundedexecutor"
)

/*
	With the run-on-caller policy a saturated pool makes the producer execute
	the task itself. The producer slows down to the pool's pace instead of
	piling up parameters and futures in memory.
*/

func main() {
	pool, err := executor.NewBoundedPool(context.Background(),
		executor.WithCoreWorkers(2),
		executor.WithMaxWorkers(4),
		executor.WithTaskQueueCap(4),
		executor.WithOverflowPolicy(executor.PolicyCallerRuns),
	)
	if err != nil {
		panic(err)
	}

	var onCaller atomic.Int32
	futureCh := make(chan executor.Future, 10)

	// Goroutine producer
	go func() {
		defer close(futureCh)
		for i := 0; i < 200; i++ {
			param := i
			f, err := pool.Submit(executor.ValueFunc(func(ctx context.Context) (any, error) {
				time.Sleep(5 * time.Millisecond)
				if executor.WorkerName(ctx) == executor.CallerWorkerName {
					onCaller.Add(1)
				}
				return param * param, nil
			}))
			if err != nil {
				fmt.Println("submit:", err)
				return
			}
			futureCh <- f
		}
	}()

	// Goroutine main acts as a consumer
	var sum int
	for f := range futureCh {
		result := f.Get()
		if result.Err != nil {
			fmt.Println(result.Err)
			continue
		}
		sum += result.Value.(int)
	}
	pool.ShutdownAndWait(executor.ShutdownGraceful)

	s := pool.Stats()
	fmt.Printf("sum:%d, peak workers:%d, ran on caller:%d (%d)\n", sum, s.PeakWorkers, s.CallerRuns, onCaller.Load())
}
