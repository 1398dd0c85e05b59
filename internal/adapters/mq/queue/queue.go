// Package queue provides the bounded in-memory queue that buffers SLA
// notifications between the deadline supervisor and the dispatchers.
//
// Enqueue is non-blocking: when the queue is full the notification is
// dropped and counted, so a slow delivery sink can never stall a sweep.
package queue

import (
	"context"
	"sync"

	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 4096
)

// Notification is the payload type flowing through the queue.
type Notification = model.SLANotification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a notification to the queue.
	// Returns false if the queue is full or closed and the
	// notification was dropped.
	Enqueue(ctx context.Context, n Notification) bool

	// Dequeue returns a channel that receives notifications as they
	// become available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Notification

	// Len returns the current number of queued notifications.
	Len(ctx context.Context) int

	// Close shuts down the queue. After closing, no new notifications
	// can be enqueued and the dequeue channel drains then closes.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	notifications chan Notification
	capacity      int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.notifications = make(chan Notification, q.capacity)

	metrics.UpdateNotificationQueueCapacity(q.capacity)
	metrics.UpdateNotificationQueueDepth(0)

	return q
}

// Enqueue adds a notification to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotificationDropped()
		metrics.RecordErrorByComponent("notification_queue", "closed")
		return false
	}

	select {
	case q.notifications <- n:
		metrics.RecordNotificationEnqueued()
		metrics.UpdateNotificationQueueDepth(len(q.notifications))
		return true
	case <-ctx.Done():
		metrics.RecordNotificationDropped()
		metrics.RecordErrorByComponent("notification_queue", "context_cancelled")
		return false
	default:
		metrics.RecordNotificationDropped()
		metrics.RecordErrorByComponent("notification_queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives notifications as they become
// available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)
		for n := range q.notifications {
			select {
			case out <- n:
				metrics.UpdateNotificationQueueDepth(len(q.notifications))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued notifications.
func (q *InMemoryQueue) Len(_ context.Context) int {
	depth := len(q.notifications)
	metrics.UpdateNotificationQueueDepth(depth)
	return depth
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.notifications)
	q.closed = true

	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
