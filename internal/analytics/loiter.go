// Package analytics implements behavioral detectors over entity position
// history: loitering (a single entity confined to a tight radius) and
// formation (multiple entities clustered at the same time).
package analytics

import (
	"github.com/im-sham/ghost-sentry/internal/geo"
	"github.com/im-sham/ghost-sentry/internal/trackcache"
)

const (
	// LoiterThresholdM is the radius, in metres, all recent positions
	// must fall within for an entity to be considered loitering.
	LoiterThresholdM = 50.0
	// LoiterMinSamples is the minimum history length before loitering
	// can be declared; shorter histories are never flagged.
	LoiterMinSamples = 5
)

// DetectLoitering reports whether entityID's recent position history (from
// cache) indicates it has remained within LoiterThresholdM of its own
// centroid. Fewer than LoiterMinSamples samples always returns false.
func DetectLoitering(cache *trackcache.Cache, entityID string) bool {
	hist := cache.Positions(entityID)
	if len(hist) < LoiterMinSamples {
		return false
	}

	points := make([]geo.Point, len(hist))
	for i, s := range hist {
		points[i] = s.Point
	}
	centroid := geo.Centroid(points)
	radiusDeg := geo.MetersToDegrees(LoiterThresholdM)

	for _, p := range points {
		if geo.Distance(p, centroid) > radiusDeg {
			return false
		}
	}
	return true
}
