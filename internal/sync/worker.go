package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned when a notification job is shed because the pool
// backlog is at capacity. The provider redelivers, so shedding is safe.
var ErrQueueFull = errors.New("sync: worker queue full")

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// Pool runs reconciliations on a fixed set of workers with a bounded
// backlog, so a notification burst cannot spawn unbounded concurrent work.
// The webhook acknowledgment path only enqueues and returns.
type Pool struct {
	engine  *Engine
	jobs    chan string
	workers int
	wg      sync.WaitGroup
}

func NewPool(engine *Engine, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Pool{
		engine:  engine,
		jobs:    make(chan string, queueSize),
		workers: workers,
	}
}

// Start launches the workers. They drain until ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	slog.Info("reconcile workers start", "count", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
}

// Submit enqueues a reconciliation for resourceID without blocking. Returns
// ErrQueueFull when the backlog is saturated.
func (p *Pool) Submit(resourceID string) error {
	select {
	case p.jobs <- resourceID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resourceID := <-p.jobs:
			if _, err := p.engine.Reconcile(ctx, resourceID); err != nil {
				// a failed run never takes the process down; the next
				// notification retries it
				slog.Error("reconcile failed", "resource", resourceID, "error", err)
			}
		}
	}
}
