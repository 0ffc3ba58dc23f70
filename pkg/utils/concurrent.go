package utils

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"
)

// DefaultSemaphoreLimit bounds concurrency when no explicit limit is given.
const DefaultSemaphoreLimit = 20

// GetSemaphoreLimit returns the concurrency limit from SEMAPHORE_LIMIT or the default.
func GetSemaphoreLimit() int {
	val := os.Getenv("SEMAPHORE_LIMIT")
	if val == "" {
		return DefaultSemaphoreLimit
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit <= 0 {
		return DefaultSemaphoreLimit
	}
	return limit
}

// ExecuteWithResults runs functions with at most maxConcurrency in flight and
// returns results and errors in input order. A panicking function yields a
// *PanicError in its slot. Functions still waiting for a slot when ctx ends get
// ctx.Err().
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = GetSemaphoreLimit()
	}

	sem := make(chan struct{}, maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer Recover(nil, "utils.gather", func(err error) { errs[i] = err })

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			results[i], errs[i] = fn()
		}()
	}

	wg.Wait()
	return results, errs
}

// GatherWithTimeout runs tasks concurrently, each under its own deadline derived from ctx.
// It is a join that tolerates partial completion: a task that times out or fails leaves
// the zero value in its slot and its error in the matching errs slot. A task that ignores
// its context is abandoned once the deadline passes, so GatherWithTimeout itself never
// waits longer than timeout plus queueing time.
func GatherWithTimeout[T any](ctx context.Context, maxConcurrency int, timeout time.Duration, tasks ...func(context.Context) (T, error)) ([]T, []error) {
	fns := make([]func() (T, error), len(tasks))
	for i, task := range tasks {
		fns[i] = func() (T, error) {
			return runWithTimeout(ctx, timeout, task)
		}
	}
	return ExecuteWithResults(ctx, maxConcurrency, fns...)
}

type outcome[T any] struct {
	value T
	err   error
}

func runWithTimeout[T any](ctx context.Context, timeout time.Duration, task func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return task(ctx)
	}

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer Recover(nil, "utils.gather", func(err error) { done <- outcome[T]{err: err} })
		v, err := task(taskCtx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-taskCtx.Done():
		return zero, taskCtx.Err()
	}
}
