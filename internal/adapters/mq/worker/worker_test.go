package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"

	worker "github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/mq/worker"
	model "github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	logging "github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockQueue hands out a pre-filled, closed channel.
type mockQueue struct {
	tasks chan worker.Task
}

func newMockQueue(entities ...string) *mockQueue {
	q := &mockQueue{tasks: make(chan worker.Task, len(entities))}
	for i, e := range entities {
		q.tasks <- worker.Task{Entity: e, Start: i * 10, End: i*10 + 10}
	}
	close(q.tasks)
	return q
}

func (q *mockQueue) Dequeue(ctx context.Context) <-chan worker.Task {
	return q.tasks
}

func entities(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("asset-%02d", i)
	}
	return out
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over three tasks", t, func() {
		_ = logging.Init()
		q := newMockQueue("a", "b", "c")
		var calls int32
		proc := worker.ProcessorFunc(func(ctx context.Context, task worker.Task) model.EntityResult {
			atomic.AddInt32(&calls, 1)
			return model.EntityResult{Entity: task.Entity}
		})
		w := worker.NewInMemoryWorker(q, proc, worker.WithName("test-worker"))

		convey.Convey("When it runs to completion", func() {
			w.Run(context.Background())
			<-w.Done()

			convey.Convey("Then every task lands in its private buffer in order", func() {
				res := w.Results()
				convey.So(len(res), convey.ShouldEqual, 3)
				convey.So(res[0].Entity, convey.ShouldEqual, "a")
				convey.So(res[2].Entity, convey.ShouldEqual, "c")
				convey.So(res[1].Status, convey.ShouldEqual, model.EntityOK)
				convey.So(atomic.LoadInt32(&calls), convey.ShouldEqual, 3)
			})
		})
	})

	convey.Convey("Given a processor that panics on one entity", t, func() {
		_ = logging.Init()
		q := newMockQueue("ok-1", "boom", "ok-2")
		proc := worker.ProcessorFunc(func(ctx context.Context, task worker.Task) model.EntityResult {
			if task.Entity == "boom" {
				panic("singular matrix")
			}
			return model.EntityResult{Entity: task.Entity}
		})
		w := worker.NewInMemoryWorker(q, proc)

		convey.Convey("When it runs", func() {
			w.Run(context.Background())

			convey.Convey("Then the panic becomes a failed result and siblings continue", func() {
				res := w.Results()
				convey.So(len(res), convey.ShouldEqual, 3)
				convey.So(res[1].Status, convey.ShouldEqual, model.EntityFailed)
				convey.So(errors.Is(res[1].Err, worker.ErrPanic), convey.ShouldBeTrue)
				convey.So(res[2].Status, convey.ShouldEqual, model.EntityOK)
			})
		})
	})

	convey.Convey("Given a canceled context", t, func() {
		_ = logging.Init()
		blocking := &mockQueue{tasks: make(chan worker.Task)}
		w := worker.NewInMemoryWorker(blocking, worker.ProcessorFunc(func(ctx context.Context, task worker.Task) model.EntityResult {
			return model.EntityResult{Entity: task.Entity}
		}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		convey.Convey("Then Run returns without tasks", func() {
			w.Run(ctx)
			convey.So(w.Results(), convey.ShouldBeEmpty)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers and forty entities", t, func() {
		_ = logging.Init()
		names := entities(40)
		q := newMockQueue(names...)
		proc := worker.ProcessorFunc(func(ctx context.Context, task worker.Task) model.EntityResult {
			return model.EntityResult{Entity: task.Entity, Folds: []model.FoldOutcome{{Entity: task.Entity, Fold: 1}}}
		})
		pool := worker.NewPool(4, q, proc)

		convey.Convey("When the pool runs", func() {
			res := pool.Run(context.Background())

			convey.Convey("Then every entity is processed exactly once", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 4)
				convey.So(len(res), convey.ShouldEqual, 40)
				got := make([]string, len(res))
				for i, r := range res {
					got[i] = r.Entity
				}
				sort.Strings(got)
				convey.So(got, convey.ShouldResemble, names)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), worker.ProcessorFunc(func(ctx context.Context, task worker.Task) model.EntityResult {
			return model.EntityResult{}
		}))

		convey.Convey("Then the pool defaults to one worker per CPU", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			convey.So(pool.Run(context.Background()), convey.ShouldBeEmpty)
		})
	})
}
