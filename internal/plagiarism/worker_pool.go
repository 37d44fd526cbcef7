package plagiarism

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task is one unit of per-file work run by the pool
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error { return f(ctx) }

// WorkerPool fans per-file standardization and fingerprinting out over a
// fixed set of goroutines. Jobs themselves are still processed one at a time.
type WorkerPool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// creates a new worker pool; size <= 0 sizes it from the CPU count
func NewWorkerPool(ctx context.Context, size int) *WorkerPool {
	if size <= 0 {
		totalCPU := runtime.NumCPU()
		systemReserve := max(1, totalCPU/4)
		size = max(1, totalCPU-systemReserve)
	}
	poolCtx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers: size,
		tasks:   make(chan Task, size*2),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	for i := 0; i < pool.workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	log.Info().Int("workers", size).Msg("File worker pool initialized")
	return pool
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task.Execute(p.ctx); err != nil {
				log.Error().Err(err).Msg("File task failed")
			}
		}
	}
}

// Submit queues a task, blocking while the buffer is full.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Run executes fn(i) for i in [0, n) on the pool and waits for all of them.
// A panic inside fn is recovered and returned as an error.
func (p *WorkerPool) Run(ctx context.Context, n int, fn func(i int)) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		panicked error
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		err := p.Submit(ctx, TaskFunc(func(context.Context) error {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicked == nil {
						panicked = fmt.Errorf("file task %d panicked: %v", i, r)
					}
					mu.Unlock()
				}
			}()
			fn(i)
			return nil
		}))
		if err != nil {
			wg.Done()
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-p.ctx.Done():
		return p.ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return panicked
}

// Close stops the workers and waits for them to exit.
func (p *WorkerPool) Close() {
	p.cancel()
	p.wg.Wait()
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.workers
}
