package queue_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/questline/verity/internal/adapters/mq/queue"
	"github.com/questline/verity/internal/domain/model"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bounded queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("Enqueued notifications come back out in order", func() {
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-1", Kind: model.NotificationWarning}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-2", Kind: model.NotificationBreach}), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)

			out := q.Dequeue(ctx)
			first := <-out
			second := <-out
			So(first.AssignmentID, ShouldEqual, "a-1")
			So(second.AssignmentID, ShouldEqual, "a-2")
		})

		Convey("Enqueue past capacity drops instead of blocking", func() {
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-1"}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-2"}), ShouldBeTrue)

			done := make(chan bool, 1)
			go func() {
				done <- q.Enqueue(ctx, queue.Notification{AssignmentID: "a-3"})
			}()

			select {
			case accepted := <-done:
				So(accepted, ShouldBeFalse)
			case <-time.After(time.Second):
				t.Fatal("enqueue blocked on a full queue")
			}
		})

		Convey("Close drains the remaining notifications", func() {
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-1"}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)

			out := q.Dequeue(ctx)
			n, ok := <-out
			So(ok, ShouldBeTrue)
			So(n.AssignmentID, ShouldEqual, "a-1")

			_, ok = <-out
			So(ok, ShouldBeFalse)
		})

		Convey("Enqueue after Close is rejected", func() {
			So(q.Close(), ShouldBeNil)
			So(q.Enqueue(ctx, queue.Notification{AssignmentID: "a-1"}), ShouldBeFalse)
		})

		Convey("Close is idempotent", func() {
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
		})
	})
}
