package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storefront/pkg/logkey"
)

var ErrQueueFull = errors.New("job queue is full")

// Queue accepts jobs for asynchronous processing.
type Queue interface {
	Enqueue(ctx context.Context, job SendOrderEmail) error
}

// MemoryQueue is an in-process queue drained by a fixed set of workers.
// Jobs still buffered when the process stops are lost.
type MemoryQueue struct {
	jobs       chan SendOrderEmail
	handler    Handler
	workers    int
	retryDelay time.Duration
	wg         sync.WaitGroup
}

func NewMemoryQueue(h Handler, size, workers int, retryDelay time.Duration) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &MemoryQueue{
		jobs:       make(chan SendOrderEmail, size),
		handler:    h,
		workers:    workers,
		retryDelay: retryDelay,
	}
}

// Enqueue buffers job without waiting for a worker.
func (q *MemoryQueue) Enqueue(ctx context.Context, job SendOrderEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. They stop when ctx is done.
func (q *MemoryQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					q.run(ctx, job)
				}
			}
		}()
	}
}

// Wait blocks until every worker has stopped.
func (q *MemoryQueue) Wait() {
	q.wg.Wait()
}

func (q *MemoryQueue) run(ctx context.Context, job SendOrderEmail) {
	for job.Attempts < MaxAttempts {
		job.Attempts++
		if err := q.handler.Handle(ctx, job); err == nil {
			return
		}
		if job.Attempts >= MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	slog.Error("job dropped after max attempts",
		slog.String(logkey.RequestID, job.RequestID),
		slog.String("job", JobName),
		slog.Int("attempts", job.Attempts))
}
