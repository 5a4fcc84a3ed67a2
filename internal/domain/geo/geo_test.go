package geo_test

import (
	"testing"

	"github.com/okian/flok/internal/domain/geo"
	"github.com/okian/flok/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDistance(t *testing.T) {
	convey.Convey("Given two points", t, func() {
		a := model.Location{Lat: 0, Lng: 0}

		convey.Convey("Then identical points are zero apart", func() {
			convey.So(geo.DistanceKm(a, a), convey.ShouldEqual, 0)
			convey.So(geo.TravelMinutes(a, a, 3), convey.ShouldEqual, 0)
		})

		convey.Convey("Then one degree of latitude is about 111 km", func() {
			b := model.Location{Lat: 1, Lng: 0}
			convey.So(geo.DistanceKm(a, b), convey.ShouldAlmostEqual, 111.19, 0.01)
		})

		convey.Convey("Then distance is symmetric", func() {
			b := model.Location{Lat: 40.7128, Lng: -74.0060}
			c := model.Location{Lat: 40.7306, Lng: -73.9352}
			convey.So(geo.DistanceKm(b, c), convey.ShouldAlmostEqual, geo.DistanceKm(c, b), 1e-9)
		})

		convey.Convey("Then travel time scales with the rate", func() {
			b := model.Location{Lat: 0.1, Lng: 0}
			d := geo.DistanceKm(a, b)
			convey.So(geo.TravelMinutes(a, b, 2), convey.ShouldAlmostEqual, 2*d, 1e-9)
			convey.So(geo.TravelMinutes(a, b, 0), convey.ShouldAlmostEqual, geo.DefaultMinutesPerKm*d, 1e-9)
		})
	})
}
