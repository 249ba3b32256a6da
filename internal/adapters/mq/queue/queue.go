// Package queue provides the bounded FIFO inbox feeding the service loop.
//
// Producers are feed callbacks and request handlers running on their own
// goroutines; the single consumer is the event loop. Enqueue blocks while the
// inbox is full so nothing is dropped or reordered per producer.
package queue

import (
	"context"
	"sync"

	"github.com/okian/matchbar/pkg/metrics"
)

const defaultCapacity = 4096

// Queue is a bounded FIFO of T.
type Queue[T any] interface {
	// Enqueue adds v, waiting for room. It fails with ErrClosed once the
	// queue is closed, or with the context's error.
	Enqueue(ctx context.Context, v T) error

	// Dequeue returns the receive side. It is never closed; watch Done.
	Dequeue() <-chan T

	// Done is closed by Close.
	Done() <-chan struct{}

	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue[T any] struct {
	items    chan T
	capacity int

	closeOnce sync.Once
	done      chan struct{}
}

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	cfg := config{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &InMemoryQueue[T]{
		items:    make(chan T, cfg.capacity),
		capacity: cfg.capacity,
		done:     make(chan struct{}),
	}
	metrics.UpdateInboxCapacity(q.capacity)
	metrics.UpdateInboxSize(0)
	return q
}

func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, v T) error {
	if q.IsClosed() {
		metrics.RecordInboxEnqueueError("closed")
		return ErrClosed
	}
	select {
	case q.items <- v:
		metrics.UpdateInboxSize(len(q.items))
		return nil
	case <-q.done:
		metrics.RecordInboxEnqueueError("closed")
		return ErrClosed
	case <-ctx.Done():
		metrics.RecordInboxEnqueueError("context_cancelled")
		return ctx.Err()
	}
}

func (q *InMemoryQueue[T]) Dequeue() <-chan T { return q.items }

func (q *InMemoryQueue[T]) Done() <-chan struct{} { return q.done }

// Len returns the number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	n := len(q.items)
	metrics.UpdateInboxSize(n)
	return n
}

// Capacity returns the configured bound.
func (q *InMemoryQueue[T]) Capacity() int { return q.capacity }

// Close stops accepting items. Queued items stay readable.
func (q *InMemoryQueue[T]) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

func (q *InMemoryQueue[T]) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
