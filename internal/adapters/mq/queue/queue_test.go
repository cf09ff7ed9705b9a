package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/brewcast/internal/domain/feedback"
)

func batch(id string) Batch {
	return Batch{
		SubmissionID: id,
		Records: []feedback.Record{
			{SubmissionID: id, ModelVersion: feedback.VersionBaseline},
			{SubmissionID: id, ModelVersion: feedback.VersionImproved},
		},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, batch("s1")); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.SubmissionID != "s1" || len(got.Records) != 2 {
		t.Errorf("unexpected batch %+v", got)
	}
	if got.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be stamped")
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		if err := q.Enqueue(ctx, batch(id)); err != nil {
			t.Fatalf("expected enqueue %s to succeed: %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, batch("s3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	const producers, perProducer = 8, 50
	q := NewInMemoryQueue(WithCapacity(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received sync.Map
	var consumers sync.WaitGroup
	consumers.Add(1)
	go func() {
		defer consumers.Done()
		for b := range q.Dequeue(ctx) {
			received.Store(b.SubmissionID, true)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for q.Enqueue(ctx, batch(fmt.Sprintf("s%d_%d", id, j))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}
	wg.Wait()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	consumers.Wait()

	count := 0
	received.Range(func(_, _ any) bool { count++; return true })
	if count != producers*perProducer {
		t.Errorf("expected %d batches, got %d", producers*perProducer, count)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, batch("s1")); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, batch("s2")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Pending batches drain before the channel closes.
	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case b, ok := <-ch:
			if !ok {
				done = true
				break
			}
			drained = append(drained, b.SubmissionID)
		case <-timeout:
			t.Fatal("expected dequeue channel to close")
		}
	}
	if len(drained) != 1 || drained[0] != "s1" {
		t.Errorf("expected s1 to drain, got %v", drained)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
