package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers
type Pool struct {
	workers int
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes jobs with at most p.workers running at once and returns the
// results in job order. onDone, if set, is called as each job finishes; calls
// are serialized. Once ctx is done no further jobs start and their results
// stay nil.
func (p *Pool) Run(ctx context.Context, jobs []Job, onDone func(i int, r Result)) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var (
		wg      sync.WaitGroup
		notify  sync.Mutex
		indexes = make(chan int)
	)
	for w := 0; w < min(p.workers, len(jobs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				r := jobs[i].Execute(ctx)
				results[i] = r
				if onDone != nil {
					notify.Lock()
					onDone(i, r)
					notify.Unlock()
				}
			}
		}()
	}

feed:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	return results
}
