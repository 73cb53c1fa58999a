// Package worker runs entity tasks on a fixed pool of goroutines.
//
// Each worker owns whole entities and appends results to a private buffer;
// buffers are collected only after every worker has stopped, so no locking
// is needed on the result path.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/metrics"
)

// Task abstracts what workers read off the queue.
type Task = model.EntityTask

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Processor runs the fold loop for one entity. It reports failures inside
// the returned result rather than as an error.
type Processor interface {
	Process(ctx context.Context, task Task) model.EntityResult
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, task Task) model.EntityResult

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, task Task) model.EntityResult {
	return f(ctx, task)
}

// InMemoryWorker drains the queue into its own result buffer.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	results []model.EntityResult
	done    chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		processor: processor,
		name:      "worker",
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run processes tasks until the queue is drained or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.results = append(w.results, w.process(ctx, task))
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Results returns the worker's buffer. Only valid after Done is closed.
func (w *InMemoryWorker) Results() []model.EntityResult { return w.results }

func (w *InMemoryWorker) process(ctx context.Context, task Task) (res model.EntityResult) {
	start := time.Now()
	metrics.AddActiveWorkers(1)
	defer func() {
		metrics.AddActiveWorkers(-1)
		if r := recover(); r != nil {
			w.logger.Error(ctx, "entity task panicked",
				logger.String("worker", w.name),
				logger.String("entity", task.Entity),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			res = model.EntityResult{
				Entity: task.Entity,
				Status: model.EntityFailed,
				Err:    fmt.Errorf("%w: %v", ErrPanic, r),
			}
		}
		if res.Status == "" {
			res.Status = model.EntityOK
		}
		metrics.RecordEntity(res.Status)
		w.logger.Debug(ctx, "entity done",
			logger.String("worker", w.name),
			logger.String("entity", task.Entity),
			logger.String("status", res.Status),
			logger.Duration("elapsed", time.Since(start)),
		)
	}()

	return w.processor.Process(ctx, task)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; runtime.NumCPU() when
// workerCount < 1. opts apply to every worker.
func NewPool(workerCount int, queue Queue, processor Processor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, processor, workerOpts...)
	}

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Debug(ctx, "starting workers", logger.Int("count", len(p.workers)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker stops and returns their buffers merged in
// worker order.
func (p *Pool) Wait() []model.EntityResult {
	p.wg.Wait()

	total := 0
	for _, w := range p.workers {
		total += len(w.results)
	}
	out := make([]model.EntityResult, 0, total)
	for _, w := range p.workers {
		out = append(out, w.results...)
	}
	return out
}

// Run is Start followed by Wait.
func (p *Pool) Run(ctx context.Context) []model.EntityResult {
	p.Start(ctx)
	return p.Wait()
}
