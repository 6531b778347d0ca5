// Package cot converts a Detection into Cursor-on-Target (CoT) XML, the
// interop format consumed by ATAK/WinTAK and other TAK-compatible clients.
package cot

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/im-sham/ghost-sentry/internal/detection"
)

// staleAfter is how long a generated event remains valid before a
// consuming TAK client should treat it as stale.
const staleAfter = 5 * time.Minute

const timeLayout = "2006-01-02T15:04:05Z"

// template is the event skeleton; uid, type, the three timestamps, point,
// contact, and remarks are filled in per call.
const template = `<?xml version="1.0" encoding="UTF-8"?>
<event version="2.0" uid="%s" type="%s" time="%s" start="%s" stale="%s" how="m-g">
  <point lat="%g" lon="%g" hae="0" ce="10" le="10"/>
  <detail>
    <contact callsign="%s"/>
    <remarks>%s</remarks>
  </detail>
</event>`

// typeMap assigns a detection label its 2525-style CoT type. Labels absent
// from the map fall back to "a-u-G", unknown ground.
var typeMap = map[string]string{
	"airplane": "a-f-A",
	"truck":    "a-u-G-E-V",
	"car":      "a-u-G-E-V",
	"boat":     "a-u-S",
}

const defaultType = "a-u-G"

// ToCursorOnTarget renders a Detection as a CoT event document, stamped
// with the given current time.
func ToCursorOnTarget(d detection.Detection, now time.Time) string {
	lat, lon := 0.0, 0.0
	if d.HasGeo {
		lat, lon = d.GeoLocation.Lat, d.GeoLocation.Lon
	}

	cotType, ok := typeMap[d.Label]
	if !ok {
		cotType = defaultType
	}

	now = now.UTC()
	stale := now.Add(staleAfter)

	callsign := "GS-" + upperTrunc(d.Label, 3)
	remarks := fmt.Sprintf("Detected %s (conf: %.2f)", d.Label, d.Confidence)

	return fmt.Sprintf(template,
		uuid.NewString(),
		cotType,
		now.Format(timeLayout),
		now.Format(timeLayout),
		stale.Format(timeLayout),
		lat, lon,
		callsign,
		remarks,
	)
}

func upperTrunc(s string, n int) string {
	s = strings.ToUpper(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
