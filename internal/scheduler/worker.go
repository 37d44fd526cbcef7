package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrWorkerClosed = errors.New("worker closed")

// Handler processes one dequeued job and reports how many archive members it
// read, which feeds the seconds-per-file average.
type Handler interface {
	Handle(ctx context.Context, entry QueueEntry) (fileCount int, err error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, entry QueueEntry) (int, error)

func (f HandlerFunc) Handle(ctx context.Context, entry QueueEntry) (int, error) {
	return f(ctx, entry)
}

// Observer receives job timings, used for metrics
type Observer interface {
	JobFinished(duration time.Duration, fileCount int, err error)
	QueueDepth(n int)
}

// Worker drains a Scheduler with a single goroutine, one job at a time
type Worker struct {
	scheduler *Scheduler
	handler   Handler
	observer  Observer
	idleDelay time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// creates a worker; call Start to begin draining the queue
func NewWorker(ctx context.Context, s *Scheduler, h Handler, idleDelay time.Duration, observer Observer) *Worker {
	if idleDelay <= 0 {
		idleDelay = 5 * time.Second
	}
	workerCtx, cancel := context.WithCancel(ctx)

	return &Worker{
		scheduler: s,
		handler:   h,
		observer:  observer,
		idleDelay: idleDelay,
		ctx:       workerCtx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutine. Calling it more than once is a no-op.
func (w *Worker) Start() error {
	if w.ctx.Err() != nil {
		return ErrWorkerClosed
	}
	w.once.Do(func() {
		w.wg.Add(1)
		go w.loop()
		log.Info().Dur("idleDelay", w.idleDelay).Msg("Submission worker started")
	})
	return nil
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		if w.ctx.Err() != nil {
			return
		}

		entry, ok := w.scheduler.Dequeue()
		if w.observer != nil {
			w.observer.QueueDepth(w.scheduler.Len())
		}
		if !ok {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(w.idleDelay):
			}
			continue
		}

		w.run(entry)
	}
}

// run processes one job; nothing that happens inside can stop the loop
func (w *Worker) run(entry QueueEntry) {
	start := time.Now()
	fileCount, err := w.safeHandle(entry)
	end := time.Now()

	w.scheduler.Complete(entry.ArchivePath, start, end, fileCount)

	if w.observer != nil {
		w.observer.JobFinished(end.Sub(start), fileCount, err)
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("archive", entry.ArchivePath).
			Dur("elapsed", end.Sub(start)).
			Msg("Job failed")
		return
	}

	log.Info().
		Str("archive", entry.ArchivePath).
		Int("files", fileCount).
		Dur("elapsed", end.Sub(start)).
		Float64("secondsPerFile", w.scheduler.SecondsPerFile()).
		Msg("Job processed")
}

func (w *Worker) safeHandle(entry QueueEntry) (fileCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("archive", entry.ArchivePath).
				Msg("Worker recovered from panic")
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	// a dequeued job runs to completion even when the worker is closing
	return w.handler.Handle(context.WithoutCancel(w.ctx), entry)
}

// Close stops the worker after the current job and waits for it to exit.
// The job in progress is not cancelled.
func (w *Worker) Close() {
	w.cancel()
	w.wg.Wait()
}
