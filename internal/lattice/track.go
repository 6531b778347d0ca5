// Package lattice holds the publishable Track representation and the
// builder/sink pair that turn a raw Detection into one.
package lattice

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/im-sham/ghost-sentry/internal/correlation"
	"github.com/im-sham/ghost-sentry/internal/detection"
)

// Position is a track's geolocation. Altitude is always 0: this system
// never estimates altitude from a 2-D detection.
type Position struct {
	LatitudeDegrees   float64 `json:"latitudeDegrees"`
	LongitudeDegrees  float64 `json:"longitudeDegrees"`
	AltitudeHaeMeters float64 `json:"altitudeHaeMeters"`
}

// Location wraps Position to match the Lattice wire shape.
type Location struct {
	Position Position `json:"position"`
}

// Ontology names the platform type a track represents.
type Ontology struct {
	Template     string `json:"template"`
	PlatformType string `json:"platform_type"`
}

// MilView is the military-view disposition/environment tag pair.
type MilView struct {
	Disposition string `json:"disposition"`
	Environment string `json:"environment"`
}

// Provenance records where and when a track's data originated.
type Provenance struct {
	IntegrationName  string    `json:"integrationName"`
	DataType         string    `json:"dataType"`
	SourceUpdateTime time.Time `json:"sourceUpdateTime"`
}

// Track is the publishable snapshot of a correlated entity, shaped to match
// the Lattice wire format.
type Track struct {
	EntityID       string     `json:"entityId"`
	Description    string     `json:"description"`
	Ontology       Ontology   `json:"ontology"`
	Location       Location   `json:"location"`
	MilView        MilView    `json:"milView"`
	Provenance     Provenance `json:"provenance"`
	Confidence     float64    `json:"confidence"`
	IsLive         bool       `json:"isLive"`
	CreatedTime    time.Time  `json:"createdTime"`
	ExpiryTime     *time.Time `json:"expiryTime,omitempty"`
	LifecycleState string     `json:"lifecycleState,omitempty"`
	ThreatLevel    string     `json:"threatLevel,omitempty"`
}

// BuildTrack maps a Detection onto a Track under the given (already
// correlated) entity ID: description "Detected {label}", platform type the
// capitalized label, environment ENVIRONMENT_AIR only for "airplane".
func BuildTrack(d detection.Detection, entityID string, now time.Time) Track {
	lat, lon := 0.0, 0.0
	if d.HasGeo {
		lat, lon = d.GeoLocation.Lat, d.GeoLocation.Lon
	}

	environment := "ENVIRONMENT_LAND"
	if d.Label == "airplane" {
		environment = "ENVIRONMENT_AIR"
	}

	return Track{
		EntityID:    entityID,
		Description: "Detected " + d.Label,
		Ontology: Ontology{
			Template:     "TEMPLATE_TRACK",
			PlatformType: capitalize(d.Label),
		},
		Location: Location{Position: Position{LatitudeDegrees: lat, LongitudeDegrees: lon}},
		MilView: MilView{
			Disposition: "DISPOSITION_UNKNOWN",
			Environment: environment,
		},
		Provenance: Provenance{
			IntegrationName:  "ghost-sentry",
			DataType:         "detection",
			SourceUpdateTime: now,
		},
		Confidence:     d.Confidence,
		IsLive:         true,
		CreatedTime:    now,
		LifecycleState: string(correlation.StateTentative),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
