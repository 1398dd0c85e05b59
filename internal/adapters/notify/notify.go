// Package notify delivers SLA notification triggers to interested
// parties. Delivery is fire-and-forget from the caller's point of
// view: triggers are pushed onto a bounded queue and drained by a
// dispatcher pool, so deadline sweeps never block on a slow sink.
package notify

import (
	"context"
	"sync"

	"github.com/questline/verity/internal/adapters/mq/queue"
	"github.com/questline/verity/internal/adapters/mq/worker"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
)

// Default notifier configuration constants.
const (
	defaultBufferSize  = 1024
	defaultDispatchers = 2
)

// Notifier accepts notification triggers.
type Notifier interface {
	// Notify hands a trigger off for delivery. It never blocks; when
	// the buffer is full the trigger is dropped and counted.
	Notify(ctx context.Context, n model.SLANotification)
}

// Sink consumes dispatched notifications. Implementations deliver
// them wherever they need to go.
type Sink = worker.Sink

// LogNotifier is the default Notifier. Triggers flow through a
// bounded queue into a dispatcher pool; without a configured sink
// they end up as structured log lines.
type LogNotifier struct {
	queue  *queue.InMemoryQueue
	pool   *worker.Pool
	logger logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewLogNotifier creates the notifier and starts its dispatchers.
func NewLogNotifier(opts ...Option) *LogNotifier {
	n := &LogNotifier{}

	cfg := config{
		bufferSize:  defaultBufferSize,
		dispatchers: defaultDispatchers,
	}
	for _, opt := range opts {
		opt(n, &cfg)
	}

	if n.logger == nil {
		n.logger = logger.Get().Named("notify")
	}
	if cfg.sink == nil {
		cfg.sink = &logSink{logger: n.logger}
	}

	n.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.bufferSize))
	n.pool = worker.NewPool(cfg.dispatchers, n.queue, cfg.sink)
	n.pool.Start(context.Background())

	return n
}

// Notify pushes the trigger onto the queue.
func (n *LogNotifier) Notify(ctx context.Context, event model.SLANotification) {
	if !n.queue.Enqueue(ctx, event) {
		n.logger.Warn(ctx, "notification dropped",
			logger.String("assignment", event.AssignmentID),
			logger.String("kind", string(event.Kind)),
		)
	}
}

// Close stops accepting triggers and waits for the queue to drain.
func (n *LogNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	return n.pool.Shutdown(context.Background())
}

// logSink writes notifications as structured log lines.
type logSink struct {
	logger logger.Logger
}

func (s *logSink) Deliver(ctx context.Context, n model.SLANotification) error {
	s.logger.Info(ctx, "sla notification",
		logger.String("assignment", n.AssignmentID),
		logger.String("kind", string(n.Kind)),
		logger.String("triggered_at", n.TriggeredAt.Format("2006-01-02T15:04:05Z07:00")),
	)
	return nil
}

// Recorder is a Notifier that captures triggers for inspection.
type Recorder struct {
	mu     sync.Mutex
	events []model.SLANotification
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify captures the trigger.
func (r *Recorder) Notify(_ context.Context, n model.SLANotification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

// Events returns a copy of everything captured so far.
func (r *Recorder) Events() []model.SLANotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SLANotification, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns captured triggers of one kind.
func (r *Recorder) OfKind(kind model.NotificationKind) []model.SLANotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SLANotification
	for _, n := range r.events {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
