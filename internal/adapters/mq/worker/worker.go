package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/brewcast/internal/adapters/mq/queue"
	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/pkg/logger"
	"github.com/okian/brewcast/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Sink stores the rows of one batch.
type Sink interface {
	Write(ctx context.Context, records []feedback.Record) error
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Batch
}

// Worker moves batches from a queue into a sink.
type Worker interface {
	// Run processes batches until the queue is drained or ctx is canceled.
	Run(ctx context.Context)
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue: q,
		sink:  sink,
		name:  "worker",
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop. Sink errors are logged and counted; the batch
// is dropped.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			if err := w.process(ctx, b); err != nil {
				w.logger.Error(ctx, "mirror write failed",
					logger.String("submission_id", b.SubmissionID),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, b queue.Batch) error {
	if err := w.sink.Write(ctx, b.Records); err != nil {
		metrics.RecordMirrorError()
		return fmt.Errorf("write batch %s: %w", b.SubmissionID, err)
	}
	metrics.RecordMirrorWrite(len(b.Records))
	w.logger.Debug(ctx, "mirrored submission",
		logger.String("submission_id", b.SubmissionID),
		logger.Int("rows", len(b.Records)),
		logger.Duration("queued", time.Since(b.EnqueuedAt)),
	)
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	wg     sync.WaitGroup
	logger logger.Logger
}

// NewPool creates a pool of workerCount workers (at least one).
func NewPool(workerCount int, q Queue, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, sink, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}
