package gateway

import (
	"encoding/json"
	"strings"

	"github.com/im-sham/ghost-sentry/internal/detection"
	"github.com/im-sham/ghost-sentry/internal/geo"
	"github.com/im-sham/ghost-sentry/internal/lattice"
)

func geoPoint(lat, lon float64) geo.Point {
	return geo.Point{Lat: lat, Lon: lon}
}

// trackToDetection reverses a live lattice.Track back into a Detection, the
// shape the cot package renders from.
func trackToDetection(t lattice.Track) detection.Detection {
	return detection.Detection{
		Label:      strings.ToLower(t.Ontology.PlatformType),
		Confidence: t.Confidence,
		HasGeo:     true,
		GeoLocation: geo.Point{
			Lat: t.Location.Position.LatitudeDegrees,
			Lon: t.Location.Position.LongitudeDegrees,
		},
	}
}

// trackJSON is the subset of the lattice.Track wire shape needed to
// reconstruct a Detection for CoT rendering out of a persisted event row's
// raw JSON payload.
type trackJSON struct {
	Confidence float64 `json:"confidence"`
	Ontology   struct {
		PlatformType string `json:"platform_type"`
	} `json:"ontology"`
	Location struct {
		Position struct {
			LatitudeDegrees  float64 `json:"latitudeDegrees"`
			LongitudeDegrees float64 `json:"longitudeDegrees"`
		} `json:"position"`
	} `json:"location"`
}

// detectionFromTrackJSON reverses a persisted track event's JSON payload
// back into a Detection, the shape the cot package renders from. Malformed
// or incomplete payloads are reported via ok=false and skipped by the
// caller, matching the original implementation's tolerance for bad rows.
func detectionFromTrackJSON(raw json.RawMessage) (detection.Detection, bool) {
	var t trackJSON
	if err := json.Unmarshal(raw, &t); err != nil || t.Ontology.PlatformType == "" {
		return detection.Detection{}, false
	}
	return detection.Detection{
		Label:      strings.ToLower(t.Ontology.PlatformType),
		Confidence: t.Confidence,
		HasGeo:     true,
		GeoLocation: geo.Point{
			Lat: t.Location.Position.LatitudeDegrees,
			Lon: t.Location.Position.LongitudeDegrees,
		},
	}, true
}
