// Package geo implements the flat-earth approximation used throughout the
// pipeline: 1 degree of latitude/longitude is treated as 111000 metres.
// Accurate geodesy is explicitly out of scope.
package geo

import "math"

// MetersPerDegree is the flat-earth conversion factor mandated by the design.
const MetersPerDegree = 111_000.0

// Point is a (latitude, longitude) pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MetersToDegrees converts a metre radius to the equivalent degree radius.
func MetersToDegrees(m float64) float64 {
	return m / MetersPerDegree
}

// Distance returns the Euclidean distance between two points in degrees.
// It is not a great-circle distance; the flat approximation is sufficient
// for the radii this system reasons about (tens to hundreds of metres).
func Distance(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// Centroid returns the arithmetic mean of the given points. Callers must not
// pass an empty slice.
func Centroid(points []Point) Point {
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lon: sumLon / n}
}
