// Package geo provides coordinate utilities for map marker placement.
package geo

import (
	"math"
	"math/rand/v2"
)

// JitterRadius is the maximum jitter offset in degrees (~50 km).
// Connections sharing a company resolve to the same cached base point;
// the jitter spreads their markers so they render as distinct dots.
const JitterRadius = 0.5

// Jitter offsets a base point by a uniformly random angle in [0, 2π) and a
// uniformly random radius in [0, JitterRadius] degrees. The offset is applied
// in flat degree-space, not along a geodesic; the error is acceptable for
// marker scatter at this scale.
func Jitter(lat, lng float64) (float64, float64) {
	angle := rand.Float64() * 2 * math.Pi
	radius := rand.Float64() * JitterRadius
	return lat + radius*math.Cos(angle), lng + radius*math.Sin(angle)
}

// ValidLat reports whether lat is a valid latitude in degrees.
func ValidLat(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLng reports whether lng is a valid longitude in degrees.
func ValidLng(lng float64) bool {
	return lng >= -180 && lng <= 180
}
