package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/questline/verity/internal/adapters/mq/queue"
	"github.com/questline/verity/internal/adapters/mq/worker"
	"github.com/questline/verity/internal/domain/model"
	"github.com/questline/verity/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type captureSink struct {
	mu        sync.Mutex
	delivered []worker.Notification
	err       error
}

func (s *captureSink) Deliver(_ context.Context, n worker.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcherPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pool draining a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := &captureSink{}
		pool := worker.NewPool(2, q, sink)
		pool.Start(ctx)

		Convey("Enqueued notifications reach the sink", func() {
			for i := 0; i < 5; i++ {
				So(q.Enqueue(ctx, queue.Notification{
					AssignmentID: "a-1",
					Kind:         model.NotificationBreach,
				}), ShouldBeTrue)
			}

			waitFor(t, func() bool { return sink.count() == 5 })
			So(pool.Shutdown(ctx), ShouldBeNil)
		})

		Convey("Shutdown drains notifications still in the queue", func() {
			for i := 0; i < 8; i++ {
				So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-2"}), ShouldBeTrue)
			}

			So(pool.Shutdown(ctx), ShouldBeNil)
			So(sink.count(), ShouldEqual, 8)
		})

		Convey("A failing sink does not stop the pool", func() {
			sink.mu.Lock()
			sink.err = errors.New("downstream unavailable")
			sink.mu.Unlock()

			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-3"}), ShouldBeTrue)

			sink.mu.Lock()
			sink.err = nil
			sink.mu.Unlock()

			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-4"}), ShouldBeTrue)
			waitFor(t, func() bool { return sink.count() >= 1 })
			So(pool.Shutdown(ctx), ShouldBeNil)
		})
	})

	Convey("Given a single dispatcher", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		sink := &captureSink{}
		d := worker.NewDispatcher(q, sink, worker.WithName("test-dispatcher"))

		runCtx, cancel := context.WithCancel(ctx)
		go d.Run(runCtx)

		Convey("Shutdown returns once the loop stops", func() {
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-1"}), ShouldBeTrue)
			waitFor(t, func() bool { return sink.count() == 1 })

			So(d.Shutdown(ctx), ShouldBeNil)
			cancel()
		})
	})
}
