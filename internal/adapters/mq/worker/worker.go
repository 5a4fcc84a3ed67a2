package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
)

const defaultWorkersPerCPU = 2

// Applier applies one interaction to the demand ledger.
type Applier interface {
	Apply(ctx context.Context, in model.Interaction) error
}

// Queue defines how workers receive interactions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Interaction
}

// InMemoryWorker reads interactions until the queue closes or ctx ends.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	logger  logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		applier: applier,
		name:    "worker",
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes interactions. It returns when the queue channel is closed
// and drained, or when ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, in); err != nil {
				w.logger.Error(ctx, "error applying interaction", logger.Error(err))
			}
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, in model.Interaction) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if err := w.applier.Apply(ctx, in); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("interaction %s: %w", in.ID, err)
	}
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool creates a pool; a non-positive count uses two workers per CPU.
func NewPool(workerCount int, q Queue, applier Applier, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkersPerCPU
	}
	if log == nil {
		log = logger.Nop()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  log.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, applier,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(log),
		)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and waits for workers to drain it, or for ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
