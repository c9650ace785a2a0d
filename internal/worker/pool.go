// Package worker runs batches of independent tasks under a fixed
// concurrency limit.
package worker

import (
	"context"
	"fmt"
	"sync"
)

// Task is one unit of work in a batch.
type Task func(ctx context.Context) error

// Run executes tasks with at most limit running concurrently and returns
// per-task results in submission order. A limit below one runs tasks one at
// a time. A cancelled context stops launching new tasks; tasks already
// running finish, and unlaunched tasks report the context error.
//
// Panics inside a task are contained and surface as that task's error; one
// misbehaving tenant never takes down a batch.
func Run(ctx context.Context, tasks []Task, limit int) []error {
	if limit < 1 {
		limit = 1
	}

	results := make([]error, len(tasks))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			results[i] = err
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runTask(ctx, task)
		}(i, task)
	}

	wg.Wait()
	return results
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}
