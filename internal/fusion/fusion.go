// Package fusion merges optical and SAR detection streams under a
// confidence gate. SAR is treated as an all-weather lead and is never
// filtered; optical detections below the threshold are assumed to be
// cloud-obscured noise and dropped.
package fusion

import "github.com/im-sham/ghost-sentry/internal/detection"

// DefaultOpticalThreshold is used when a caller does not override it.
const DefaultOpticalThreshold = 0.5

// Config tunes the fusion gate.
type Config struct {
	OpticalThreshold float64
}

// DefaultConfig returns the gate used when no override is supplied.
func DefaultConfig() Config {
	return Config{OpticalThreshold: DefaultOpticalThreshold}
}

// Fuse merges optical and sar detection batches into a single ordered
// stream: every optical detection with confidence >= cfg.OpticalThreshold
// first (label suffixed " (Optical)"), preserving input order, followed by
// every SAR detection unconditionally (label suffixed " (SAR)"), also
// preserving input order. Fuse has no side effects.
func Fuse(optical, sar []detection.Detection, cfg Config) []detection.Detection {
	out := make([]detection.Detection, 0, len(optical)+len(sar))

	for _, d := range optical {
		if d.Confidence >= cfg.OpticalThreshold {
			d.Label = d.Label + " (Optical)"
			d.Source = detection.SourceOptical
			out = append(out, d)
		}
	}
	for _, d := range sar {
		d.Label = d.Label + " (SAR)"
		d.Source = detection.SourceSAR
		out = append(out, d)
	}
	return out
}
