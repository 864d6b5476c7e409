package main

import (
	"context"
	"fmt"
	"time"

	executor "github.com/vearne/boundedexecutor"
)

func main() {
	pool := executor.NewSingleGPool(context.Background(),
		executor.WithTaskQueueCap(10),
		executor.WithOverflowPolicy(executor.PolicyReject),
	)
	futureList := make([]executor.Future, 0)

	for i := 0; i < 50; i++ {
		i := i
		f, err := pool.Submit(executor.ValueFunc(func(ctx context.Context) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return fmt.Sprintf("%d on %s", i*i, executor.WorkerName(ctx)), nil
		}))
		if err != nil {
			fmt.Println("reject task", i, err)
			continue
		}
		fmt.Println("add task", i)
		futureList = append(futureList, f)
	}

	// no new tasks from here on, the accepted ones still run in order
	pool.Shutdown()
	for _, f := range futureList {
		result := f.Get()
		fmt.Println(result.Err, result.Value)
	}
	pool.WaitTerminate()
}
