package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/flok/internal/adapters/audit"
	"github.com/okian/flok/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func ix(id, user, opp string, kind model.Kind) model.Interaction {
	return model.Interaction{ID: id, UserID: user, OpportunityID: opp, Kind: kind, At: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)}
}

func TestBadgerLog(t *testing.T) {
	Convey("Given an in-memory interaction log", t, func() {
		ctx := context.Background()
		log, err := audit.Open("")
		So(err, ShouldBeNil)
		defer log.Close()

		Convey("When interactions are appended", func() {
			So(log.Append(ctx, ix("ix1", "u1", "o1", model.KindShown)), ShouldBeNil)
			So(log.Append(ctx, ix("ix2", "u1", "o2", model.KindAccepted)), ShouldBeNil)
			So(log.Append(ctx, ix("ix3", "u2", "o1", model.KindClicked)), ShouldBeNil)

			Convey("Then the seen index should answer per pair", func() {
				seen, err := log.Seen(ctx, "u1", "o1")
				So(err, ShouldBeNil)
				So(seen, ShouldBeTrue)
				seen, err = log.Seen(ctx, "u2", "o2")
				So(err, ShouldBeNil)
				So(seen, ShouldBeFalse)
			})

			Convey("Then a user's seen set should list their opportunities", func() {
				set, err := log.SeenBy(ctx, "u1")
				So(err, ShouldBeNil)
				So(set, ShouldResemble, map[string]bool{"o1": true, "o2": true})
			})

			Convey("Then records should round trip", func() {
				got, err := log.Get(ctx, "ix2")
				So(err, ShouldBeNil)
				So(got.Kind, ShouldEqual, model.KindAccepted)
				So(got.At.Equal(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})

			Convey("Then appending a known id should not duplicate it", func() {
				So(log.Append(ctx, ix("ix1", "u9", "o9", model.KindDeclined)), ShouldBeNil)
				n, err := log.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				seen, _ := log.Seen(ctx, "u9", "o9")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When an interaction has no id", func() {
			err := log.Append(ctx, ix("", "u1", "o1", model.KindShown))
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When an id is unknown", func() {
			_, err := log.Get(ctx, "missing")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given an on-disk interaction log", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		log, err := audit.Open(dir)
		So(err, ShouldBeNil)
		So(log.Append(ctx, ix("ix1", "u1", "o1", model.KindClicked)), ShouldBeNil)
		So(log.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			reopened, err := audit.Open(dir)
			So(err, ShouldBeNil)
			defer reopened.Close()

			Convey("Then earlier interactions should still be seen", func() {
				seen, err := reopened.Seen(ctx, "u1", "o1")
				So(err, ShouldBeNil)
				So(seen, ShouldBeTrue)
			})
		})
	})
}
