// Package worker runs the single consumer of the service inbox.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/matchbar/pkg/logger"
	"github.com/okian/matchbar/pkg/metrics"
)

// Message is anything the loop can handle. Kind labels latency metrics.
type Message interface {
	Kind() string
}

// Handler processes one message to completion.
type Handler[T Message] interface {
	Handle(ctx context.Context, msg T)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T Message] func(ctx context.Context, msg T)

// Handle calls f(ctx, msg).
func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) { f(ctx, msg) }

// Source is the receive side of an inbox.
type Source[T any] interface {
	Dequeue() <-chan T
	Done() <-chan struct{}
}

// Loop handles messages from a Source one at a time, in order.
type Loop[T Message] struct {
	source  Source[T]
	handler Handler[T]
	name    string

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewLoop creates a loop. Run must be called to start it.
func NewLoop[T Message](source Source[T], handler Handler[T], opts ...Option) *Loop[T] {
	cfg := options{name: "loop", logger: logger.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loop[T]{
		source:   source,
		handler:  handler,
		name:     cfg.name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   cfg.logger.Named(cfg.name),
	}
}

// Run handles messages until ctx is cancelled, Shutdown is called, or the
// source is closed. A closed source is drained first.
func (l *Loop[T]) Run(ctx context.Context) {
	defer close(l.done)

	items := l.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case msg := <-items:
			l.handle(ctx, msg)
		case <-l.source.Done():
			l.drain(ctx, items)
			return
		}
	}
}

func (l *Loop[T]) drain(ctx context.Context, items <-chan T) {
	for {
		select {
		case msg := <-items:
			l.handle(ctx, msg)
		default:
			return
		}
	}
}

func (l *Loop[T]) handle(ctx context.Context, msg T) {
	start := time.Now()
	defer func() {
		metrics.RecordLoopHandlingLatency(msg.Kind(), float64(time.Since(start).Microseconds())/1000)
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent(l.name, "panic")
			l.logger.Error(ctx, "message handler panicked",
				logger.String("kind", msg.Kind()),
				logger.Any("panic", r),
			)
		}
	}()
	l.handler.Handle(ctx, msg)
}

// Done is closed when Run returns.
func (l *Loop[T]) Done() <-chan struct{} { return l.done }

// Shutdown stops the loop after the current message.
func (l *Loop[T]) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.shutdown) })
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
