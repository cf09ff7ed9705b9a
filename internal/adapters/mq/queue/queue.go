// Package queue carries appended log submissions from the request path to
// background sinks.
//
// The queue is bounded and never blocks the producer: a full queue drops
// the batch and reports ErrFull.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/brewcast/internal/domain/feedback"
	"github.com/okian/brewcast/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Batch is the set of rows produced by one feedback submission.
type Batch struct {
	SubmissionID string
	Records      []feedback.Record
	EnqueuedAt   time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a batch. It fails with ErrFull or ErrClosed instead of
	// blocking.
	Enqueue(ctx context.Context, b Batch) error

	// Dequeue returns a channel that receives batches until the queue is
	// closed and drained.
	Dequeue(ctx context.Context) <-chan Batch

	// Len returns the number of pending batches.
	Len() int

	// Close stops accepting batches. Pending batches stay readable.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	batches  chan Batch
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.batches = make(chan Batch, q.capacity)
	metrics.UpdateMirrorQueue(0, q.capacity)
	return q
}

// Enqueue adds a batch to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, b Batch) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordMirrorEnqueueError()
		return ErrClosed
	}
	if b.EnqueuedAt.IsZero() {
		b.EnqueuedAt = time.Now()
	}

	select {
	case q.batches <- b:
		metrics.UpdateMirrorQueue(len(q.batches), q.capacity)
		return nil
	case <-ctx.Done():
		metrics.RecordMirrorEnqueueError()
		return fmt.Errorf("enqueue %s: %w", b.SubmissionID, ctx.Err())
	default:
		metrics.RecordMirrorEnqueueError()
		return fmt.Errorf("%w: %d pending", ErrFull, q.capacity)
	}
}

// Dequeue returns a channel that will receive batches as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Batch {
	out := make(chan Batch)
	go func() {
		defer close(out)
		for b := range q.batches {
			select {
			case out <- b:
				metrics.UpdateMirrorQueue(len(q.batches), q.capacity)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued batches.
func (q *InMemoryQueue) Len() int {
	return len(q.batches)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.batches)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
