package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	executor "github.com/vearne/boundedexecutor"
)

/*
	2 core workers, up to 4 under load, 2 queue slots, submitters block when
	everything is taken. Of 8 simultaneous submissions, 4 run at once, 2 wait
	in the queue and 2 submitters block until a slot frees.
*/

func main() {
	pool, err := executor.NewBoundedPool(context.Background(),
		executor.WithCoreWorkers(2),
		executor.WithMaxWorkers(4),
		executor.WithTaskQueueCap(2),
		executor.WithOverflowPolicy(executor.PolicyBlock),
		executor.WithIdleTimeout(time.Second),
		executor.WithNamePrefix("bounded"),
	)
	if err != nil {
		panic(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			f, err := pool.Submit(executor.ValueFunc(func(ctx context.Context) (any, error) {
				time.Sleep(500 * time.Millisecond)
				return executor.WorkerName(ctx), nil
			}))
			if err != nil {
				fmt.Println("task", i, err)
				return
			}
			accepted := time.Since(start)
			result := f.Get()
			fmt.Printf("task %d accepted after %v, ran on %v\n", i, accepted.Round(time.Millisecond), result.Value)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	printStats(pool)
	wg.Wait()
	printStats(pool)

	// the two extra workers go away after the idle timeout
	time.Sleep(1500 * time.Millisecond)
	fmt.Println("workers:", pool.Workers())

	pool.ShutdownAndWait(executor.ShutdownGraceful)
	printStats(pool)
}

func printStats(pool *executor.BoundedPool) {
	b, _ := json.Marshal(pool.Stats())
	fmt.Println(string(b))
}
