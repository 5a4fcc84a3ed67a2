// Package geo estimates travel between two coordinates.
package geo

import (
	"math"

	"github.com/okian/flok/internal/domain/model"
)

const (
	earthRadiusKm = 6371.0

	// DefaultMinutesPerKm converts straight-line distance to urban travel time.
	DefaultMinutesPerKm = 3.0
)

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b model.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// TravelMinutes estimates minutes from a to b at minutesPerKm.
// A non-positive rate uses DefaultMinutesPerKm.
func TravelMinutes(a, b model.Location, minutesPerKm float64) float64 {
	if minutesPerKm <= 0 {
		minutesPerKm = DefaultMinutesPerKm
	}
	return DistanceKm(a, b) * minutesPerKm
}
