// Package detection holds the value type produced by the (out-of-scope)
// object detector and consumed by the fusion and sentry engines.
package detection

import "github.com/im-sham/ghost-sentry/internal/geo"

// Source identifies which sensor modality produced a Detection.
type Source string

const (
	SourceOptical Source = "optical"
	SourceSAR     Source = "sar"
)

// BBox is a pixel bounding box, x1,y1,x2,y2.
type BBox struct {
	X1, Y1, X2, Y2 int
}

// Detection is an immutable observation from a sensor. GeoLocation is
// optional: the out-of-scope geospatial helper may fail to project a pixel
// to a lat/lon, in which case HasGeo is false and GeoLocation is the zero
// value.
type Detection struct {
	Label      string
	Confidence float64
	BBox       BBox
	GeoLocation geo.Point
	HasGeo      bool
	Source      Source
}

// TacticalClasses is the finite vocabulary of optical detector labels.
// Label-based auto-tasking does not consult it: the sentry engine cues on
// its own narrower HighPriorityLabels set (airplane, truck, boat).
var TacticalClasses = map[string]bool{
	"airplane": true,
	"truck":    true,
	"car":      true,
	"boat":     true,
	"bus":      true,
}
