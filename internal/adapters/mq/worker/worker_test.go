package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/flok/internal/adapters/mq/queue"
	worker "github.com/okian/flok/internal/adapters/mq/worker"
	model "github.com/okian/flok/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type recordingApplier struct {
	mu      sync.Mutex
	applied []string
	fail    map[string]error
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{fail: make(map[string]error)}
}

func (r *recordingApplier) Apply(_ context.Context, in model.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[in.ID]; ok {
		return err
	}
	r.applied = append(r.applied, in.ID)
	return nil
}

func (r *recordingApplier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied)
}

func interaction(id string) model.Interaction {
	return model.Interaction{ID: id, UserID: "u", OpportunityID: "o", Kind: model.KindAccepted, At: time.Now()}
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker on a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		applier := newRecordingApplier()
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("w1"))
		ctx := context.Background()

		convey.Convey("When interactions are queued and the queue closes", func() {
			for i := 0; i < 3; i++ {
				q.Enqueue(ctx, interaction(fmt.Sprintf("ix%d", i)))
			}
			_ = q.Close()
			w.Run(ctx)

			convey.Convey("Then every interaction should be applied in order", func() {
				convey.So(applier.applied, convey.ShouldResemble, []string{"ix0", "ix1", "ix2"})
			})
		})

		convey.Convey("When one interaction fails", func() {
			applier.fail["bad"] = errors.New("boom")
			q.Enqueue(ctx, interaction("bad"))
			q.Enqueue(ctx, interaction("good"))
			_ = q.Close()
			w.Run(ctx)

			convey.Convey("Then the worker should keep going", func() {
				convey.So(applier.applied, convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				w.Run(cctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then the worker should stop", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		applier := newRecordingApplier()
		pool := worker.NewPool(4, q, applier, nil)
		ctx := context.Background()
		pool.Start(ctx)

		convey.Convey("When many interactions are queued and the pool shuts down", func() {
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(ctx, interaction(fmt.Sprintf("ix%d", i))), convey.ShouldBeTrue)
			}
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Shutdown(sctx)

			convey.Convey("Then the queue should be drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 4)
				convey.So(applier.count(), convey.ShouldEqual, 200)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})

			convey.Convey("Then a second shutdown should be harmless", func() {
				convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}
