// Package async runs independent tasks on a bounded number of goroutines.
package async

import (
	"context"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (interface{}, error)
}

type Result struct {
	Name string
	Data interface{}
	Err  error
}

type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup, tasks <-chan Task, results chan<- Result) {
	defer wg.Done()
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Name: task.Name, Err: err}
			continue
		}
		data, err := task.Execute(ctx)
		results <- Result{
			Name: task.Name,
			Data: data,
			Err:  err,
		}
	}
}

// Execute runs tasks and returns their results keyed by task name. Every task
// gets a result; tasks not started before ctx is done report ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	var wg sync.WaitGroup
	queue := make(chan Task, len(tasks))
	results := make(chan Result, len(tasks))

	workers := p.workerCount
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, queue, results)
	}

	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	wg.Wait()
	close(results)

	out := make(map[string]Result, len(tasks))
	for r := range results {
		out[r.Name] = r
	}
	return out
}

// FirstError returns the error of the first failed task in tasks order.
func FirstError(tasks []Task, results map[string]Result) error {
	for _, t := range tasks {
		if r, ok := results[t.Name]; ok && r.Err != nil {
			return r.Err
		}
	}
	return nil
}
