package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchbar/internal/adapters/mq/queue"
	"github.com/okian/matchbar/internal/adapters/mq/worker"
)

type msg struct {
	kind string
	n    int
}

func (m msg) Kind() string { return m.kind }

type collector struct {
	mu  sync.Mutex
	got []int
}

func (c *collector) Handle(_ context.Context, m msg) {
	if m.kind == "boom" {
		panic("boom")
	}
	c.mu.Lock()
	c.got = append(c.got, m.n)
	c.mu.Unlock()
}

func (c *collector) seen() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.got...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestLoop(t *testing.T) {
	convey.Convey("Given a loop over an inbox", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue[msg](queue.WithCapacity(16))
		c := &collector{}
		loop := worker.NewLoop[msg](q, c, worker.WithName("test-loop"))
		go loop.Run(ctx)

		convey.Convey("When messages are enqueued", func() {
			for i := 1; i <= 5; i++ {
				convey.So(q.Enqueue(ctx, msg{kind: "push", n: i}), convey.ShouldBeNil)
			}

			convey.Convey("Then they are handled in order", func() {
				convey.So(waitFor(func() bool { return len(c.seen()) == 5 }), convey.ShouldBeTrue)
				convey.So(c.seen(), convey.ShouldResemble, []int{1, 2, 3, 4, 5})
				convey.So(loop.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a handler panics", func() {
			_ = q.Enqueue(ctx, msg{kind: "boom"})
			_ = q.Enqueue(ctx, msg{kind: "push", n: 7})

			convey.Convey("Then the loop keeps going", func() {
				convey.So(waitFor(func() bool { return len(c.seen()) == 1 }), convey.ShouldBeTrue)
				convey.So(c.seen(), convey.ShouldResemble, []int{7})
				convey.So(loop.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the inbox is closed", func() {
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the loop exits", func() {
				select {
				case <-loop.Done():
				case <-time.After(time.Second):
					convey.So("loop did not exit", convey.ShouldBeEmpty)
				}
				convey.So(loop.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a closed inbox with queued messages", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue[msg](queue.WithCapacity(4))
		for i := 1; i <= 3; i++ {
			_ = q.Enqueue(ctx, msg{kind: "push", n: i})
		}
		_ = q.Close()
		c := &collector{}
		loop := worker.NewLoop[msg](q, worker.HandlerFunc[msg](c.Handle))

		convey.Convey("When the loop runs", func() {
			loop.Run(ctx)

			convey.Convey("Then queued messages are drained before exit", func() {
				convey.So(c.seen(), convey.ShouldResemble, []int{1, 2, 3})
			})
		})
	})

	convey.Convey("Given a loop that never started", t, func() {
		q := queue.NewInMemoryQueue[msg]()
		loop := worker.NewLoop[msg](q, &collector{})

		convey.Convey("When shutdown has a short deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			convey.Convey("Then it times out", func() {
				convey.So(loop.Shutdown(ctx), convey.ShouldNotBeNil)
			})
		})
	})
}
