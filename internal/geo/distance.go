// Package geo measures journey paths on the sphere.
package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"itera/internal/itinerary"
)

// Distance returns the great-circle distance in meters between two stops.
func Distance(a, b itinerary.LatLon) float64 {
	return orbgeo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}

// PathLength returns the length in meters of a lon/lat path, summing the
// great-circle distance of consecutive points.
func PathLength(line orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += orbgeo.DistanceHaversine(line[i-1], line[i])
	}
	return total
}

// MetersToKilometers converts meters to kilometers.
func MetersToKilometers(m float64) float64 {
	return m / 1000
}
