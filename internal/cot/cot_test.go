package cot

import (
	"strings"
	"testing"
	"time"

	"github.com/im-sham/ghost-sentry/internal/detection"
	"github.com/im-sham/ghost-sentry/internal/geo"
)

func TestToCursorOnTargetMapsKnownLabel(t *testing.T) {
	d := detection.Detection{Label: "airplane", Confidence: 0.92, HasGeo: true, GeoLocation: geo.Point{Lat: 33.94, Lon: -118.41}}
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	xml := ToCursorOnTarget(d, now)

	if !strings.Contains(xml, `type="a-f-A"`) {
		t.Errorf("missing mapped CoT type: %s", xml)
	}
	if !strings.Contains(xml, `lat="33.94"`) || !strings.Contains(xml, `lon="-118.41"`) {
		t.Errorf("missing point coordinates: %s", xml)
	}
	if !strings.Contains(xml, `callsign="GS-AIR"`) {
		t.Errorf("missing callsign: %s", xml)
	}
	if !strings.Contains(xml, `time="2026-07-30T12:00:00Z"`) {
		t.Errorf("missing formatted time: %s", xml)
	}
	if !strings.Contains(xml, `stale="2026-07-30T12:05:00Z"`) {
		t.Errorf("stale time should be 5 minutes after event time: %s", xml)
	}
	if !strings.Contains(xml, "Detected airplane (conf: 0.92)") {
		t.Errorf("missing remarks: %s", xml)
	}
}

func TestToCursorOnTargetUnknownLabelFallsBackToDefaultType(t *testing.T) {
	d := detection.Detection{Label: "bicycle", Confidence: 0.5}
	xml := ToCursorOnTarget(d, time.Now())
	if !strings.Contains(xml, `type="a-u-G"`) {
		t.Errorf("missing default CoT type: %s", xml)
	}
}

func TestToCursorOnTargetMissingGeoDefaultsToZero(t *testing.T) {
	d := detection.Detection{Label: "car", Confidence: 0.5}
	xml := ToCursorOnTarget(d, time.Now())
	if !strings.Contains(xml, `lat="0"`) || !strings.Contains(xml, `lon="0"`) {
		t.Errorf("missing zero-value point: %s", xml)
	}
}

func TestToCursorOnTargetGeneratesFreshUIDPerCall(t *testing.T) {
	d := detection.Detection{Label: "car", Confidence: 0.5}
	a := ToCursorOnTarget(d, time.Now())
	b := ToCursorOnTarget(d, time.Now())
	if a == b {
		t.Error("expected distinct CoT event UIDs across calls")
	}
}
