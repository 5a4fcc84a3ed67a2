package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/flok/internal/domain/ledger"
	"github.com/okian/flok/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestLedgerUpdate(t *testing.T) {
	convey.Convey("Given an empty ledger", t, func() {
		ctx := context.Background()
		l := ledger.New()

		convey.Convey("When ten accepts arrive at the same instant", func() {
			var st ledger.State
			for i := 0; i < 10; i++ {
				var err error
				st, err = l.Update(ctx, "o1", model.KindAccepted, t0)
				convey.So(err, convey.ShouldBeNil)
			}

			convey.Convey("Then demand should be exactly ten", func() {
				convey.So(st.D, convey.ShouldEqual, 10)
				convey.So(st.LastUpdate, convey.ShouldEqual, t0)
			})

			convey.Convey("Then twelve hours later it should have decayed by e", func() {
				convey.So(l.DemandAt("o1", t0.Add(12*time.Hour)), convey.ShouldAlmostEqual, 10/math.E, 1e-9)
			})

			convey.Convey("Then reading does not mutate the stored state", func() {
				_ = l.DemandAt("o1", t0.Add(48*time.Hour))
				got, ok := l.State("o1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.D, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When a shown event is recorded", func() {
			_, _ = l.Update(ctx, "o1", model.KindAccepted, t0)
			st, err := l.Update(ctx, "o1", model.KindShown, t0.Add(time.Hour))

			convey.Convey("Then only decay applies and the timestamp advances", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.D, convey.ShouldAlmostEqual, math.Exp(-1.0/12), 1e-12)
				convey.So(st.LastUpdate, convey.ShouldEqual, t0.Add(time.Hour))
			})
		})

		convey.Convey("When each kind is applied once", func() {
			_, _ = l.Update(ctx, "a", model.KindAccepted, t0)
			_, _ = l.Update(ctx, "c", model.KindClicked, t0)
			_, _ = l.Update(ctx, "d", model.KindDeclined, t0)

			convey.Convey("Then the deltas should match their kinds", func() {
				convey.So(l.DemandAt("a", t0), convey.ShouldEqual, 1.0)
				convey.So(l.DemandAt("c", t0), convey.ShouldEqual, 0.2)
				convey.So(l.DemandAt("d", t0), convey.ShouldEqual, -0.5)
			})
		})

		convey.Convey("When an event arrives out of order", func() {
			_, _ = l.Update(ctx, "o1", model.KindAccepted, t0.Add(2*time.Hour))
			st, err := l.Update(ctx, "o1", model.KindAccepted, t0)

			convey.Convey("Then it adds its delta without rewinding time", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.D, convey.ShouldEqual, 2)
				convey.So(st.LastUpdate, convey.ShouldEqual, t0.Add(2*time.Hour))
			})
		})

		convey.Convey("When the opportunity is unknown", func() {
			_, ok := l.State("missing")

			convey.Convey("Then it has no state and zero demand", func() {
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(l.DemandAt("missing", t0), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the input is invalid", func() {
			_, errID := l.Update(ctx, "", model.KindAccepted, t0)
			_, errKind := l.Update(ctx, "o1", model.Kind("liked"), t0)
			_, errAt := l.Update(ctx, "o1", model.KindAccepted, time.Time{})

			convey.Convey("Then each should be a field error", func() {
				var fe *model.FieldError
				convey.So(errors.As(errID, &fe), convey.ShouldBeTrue)
				convey.So(fe.Field, convey.ShouldEqual, "opportunity_id")
				convey.So(errors.As(errKind, &fe), convey.ShouldBeTrue)
				convey.So(fe.Field, convey.ShouldEqual, "kind")
				convey.So(errors.As(errAt, &fe), convey.ShouldBeTrue)
				convey.So(fe.Field, convey.ShouldEqual, "at")
				convey.So(l.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := l.Update(cctx, "o1", model.KindAccepted, t0)

			convey.Convey("Then the update should not apply", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(l.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestLedgerDecayMonotonic(t *testing.T) {
	convey.Convey("Given positive demand", t, func() {
		l := ledger.New(ledger.WithDecayTimescale(time.Hour))
		_, _ = l.Update(context.Background(), "o1", model.KindAccepted, t0)

		convey.Convey("Then demand should shrink strictly toward zero over time", func() {
			prev := l.DemandAt("o1", t0)
			for i := 1; i <= 20; i++ {
				cur := l.DemandAt("o1", t0.Add(time.Duration(i)*10*time.Minute))
				convey.So(cur, convey.ShouldBeLessThan, prev)
				convey.So(cur, convey.ShouldBeGreaterThan, 0)
				prev = cur
			}
		})

		convey.Convey("Then negative elapsed time should not grow demand", func() {
			convey.So(l.DemandAt("o1", t0.Add(-time.Hour)), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given the decay helper", t, func() {
		convey.Convey("Then a non-positive timescale disables decay", func() {
			convey.So(ledger.Decay(3, time.Hour, 0), convey.ShouldEqual, 3)
		})
		convey.Convey("Then zero elapsed time leaves demand unchanged", func() {
			convey.So(ledger.Decay(3, 0, time.Hour), convey.ShouldEqual, 3)
		})
	})
}

func TestLedgerSnapshot(t *testing.T) {
	convey.Convey("Given several opportunities", t, func() {
		ctx := context.Background()
		l := ledger.New(ledger.WithShardCount(4))
		_, _ = l.Update(ctx, "b", model.KindAccepted, t0)
		_, _ = l.Update(ctx, "a", model.KindClicked, t0)
		l.Ensure("c", t0)
		l.Ensure("a", t0.Add(time.Hour))

		convey.Convey("Then the snapshot should cover every id", func() {
			snap := l.Snapshot(t0)
			convey.So(snap, convey.ShouldHaveLength, 3)
			convey.So(snap["b"], convey.ShouldEqual, 1)
			convey.So(snap["a"], convey.ShouldEqual, 0.2)
			convey.So(snap["c"], convey.ShouldEqual, 0)
		})

		convey.Convey("Then ids should be sorted", func() {
			convey.So(l.IDs(), convey.ShouldResemble, []string{"a", "b", "c"})
		})
	})
}

func TestLedgerConcurrentUpdates(t *testing.T) {
	convey.Convey("Given many concurrent writers on a few opportunities", t, func() {
		ctx := context.Background()
		l := ledger.New(ledger.WithShardCount(2))
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 252; i++ {
					_, _ = l.Update(ctx, fmt.Sprintf("o%d", i%4), model.KindAccepted, t0)
				}
			}()
		}
		wg.Wait()

		convey.Convey("Then no delta should be lost", func() {
			for i := 0; i < 4; i++ {
				convey.So(l.DemandAt(fmt.Sprintf("o%d", i), t0), convey.ShouldEqual, 504.0)
			}
		})
	})
}

func TestLedgerRestore(t *testing.T) {
	convey.Convey("Given a ledger restored from a snapshot", t, func() {
		l := ledger.New()
		err := l.Restore("o1", ledger.State{D: 10, LastUpdate: t0})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then reads and updates continue from the restored state", func() {
			convey.So(l.DemandAt("o1", t0.Add(12*time.Hour)), convey.ShouldAlmostEqual, 3.6788, 0.0001)
			st, err := l.Update(context.Background(), "o1", model.KindAccepted, t0)
			convey.So(err, convey.ShouldBeNil)
			convey.So(st.D, convey.ShouldEqual, 11)
		})

		convey.Convey("Then invalid states are rejected", func() {
			convey.So(errors.Is(l.Restore("", ledger.State{LastUpdate: t0}), model.ErrInvalidInput), convey.ShouldBeTrue)
			convey.So(errors.Is(l.Restore("o2", ledger.State{D: math.NaN(), LastUpdate: t0}), model.ErrInvalidInput), convey.ShouldBeTrue)
			convey.So(errors.Is(l.Restore("o2", ledger.State{D: 1}), model.ErrInvalidInput), convey.ShouldBeTrue)
		})
	})
}
