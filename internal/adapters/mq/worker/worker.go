// Package worker runs the dispatcher pool that delivers queued SLA
// notifications to a delivery sink.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/questline/verity/internal/adapters/mq/queue"
	"github.com/questline/verity/pkg/logger"
	"github.com/questline/verity/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultDispatcherCount    = 2
	dispatcherShutdownTimeout = 5 * time.Second
	poolShutdownTimeout       = 30 * time.Second
)

// Notification is what dispatchers read off the queue.
type Notification = queue.Notification

// Sink delivers one notification to its destination.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Queue defines how dispatchers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Notification
}

// Dispatcher drains notifications from the queue and hands them to the sink.
type Dispatcher struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a new dispatcher with configuration options.
func NewDispatcher(q Queue, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    q,
		sink:     sink,
		name:     "dispatcher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.name != "dispatcher" {
		d.logger = d.logger.Named(d.name)
	}

	return d
}

// Run starts the dispatch loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	notifications := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if err := d.dispatch(ctx, n); err != nil {
				d.logger.Error(ctx, "notification delivery failed", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the dispatcher, waiting for the current delivery.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdown)

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// dispatch delivers a single notification.
func (d *Dispatcher) dispatch(ctx context.Context, n Notification) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordNotificationDispatchLatency(float64(latency))
	}()

	if err := d.sink.Deliver(ctx, n); err != nil {
		metrics.RecordErrorByComponent("dispatcher", "delivery_failed")
		return fmt.Errorf("deliver notification for assignment %s: %w", n.AssignmentID, err)
	}

	return nil
}

// Pool manages multiple dispatchers draining one queue.
type Pool struct {
	dispatchers []*Dispatcher
	queue       Queue

	logger logger.Logger
}

// NewPool creates a new dispatcher pool.
func NewPool(count int, q Queue, sink Sink) *Pool {
	if count < 1 {
		count = defaultDispatcherCount
	}

	pool := &Pool{
		dispatchers: make([]*Dispatcher, count),
		queue:       q,
		logger:      logger.Get().Named("dispatcher-pool"),
	}

	for i := 0; i < count; i++ {
		pool.dispatchers[i] = NewDispatcher(q, sink, WithName("dispatcher-"+strconv.Itoa(i)))
	}

	metrics.UpdateNotificationDispatchers(count)

	return pool
}

// Start starts all dispatchers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, d := range p.dispatchers {
		go d.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the dispatchers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, d := range p.dispatchers {
		select {
		case <-d.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "dispatcher shutdown timed out", logger.Int("dispatcher_id", i))
		}
	}

	metrics.UpdateNotificationDispatchers(0)

	return nil
}
