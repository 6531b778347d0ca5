// Package sentry implements the decision engine (C8): it drives fusion,
// correlation, and behavioral analytics over a detection batch, decides
// when to cue an asset, and publishes the resulting tracks and tasks.
package sentry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/im-sham/ghost-sentry/internal/assets"
	"github.com/im-sham/ghost-sentry/internal/analytics"
	"github.com/im-sham/ghost-sentry/internal/correlation"
	"github.com/im-sham/ghost-sentry/internal/detection"
	"github.com/im-sham/ghost-sentry/internal/fusion"
	"github.com/im-sham/ghost-sentry/internal/geo"
	"github.com/im-sham/ghost-sentry/internal/lattice"
	"github.com/im-sham/ghost-sentry/internal/threat"
	"github.com/im-sham/ghost-sentry/internal/trackcache"
)

// HighPriorityLabels are the tactical labels that warrant autonomous
// cueing on confidence alone, without needing a behavioral trigger.
var HighPriorityLabels = map[string]bool{"airplane": true, "truck": true, "boat": true}

// ConfidenceThreshold is the minimum confidence a high-priority label must
// clear to be auto-cued.
const ConfidenceThreshold = 0.85

// DebounceWindow bounds how often the same entity can be re-tasked.
const DebounceWindow = 10 * time.Minute

// Stats aggregates the outcome of a ProcessDetections call.
type Stats struct {
	Tracks int
	Tasks  int
}

// Engine owns the process-wide correlation matcher, position cache, asset
// registry, and debounce map. It is constructed once at startup and passed
// by reference.
type Engine struct {
	matcher    *correlation.Matcher
	cache      *trackcache.Cache
	registry   *assets.Registry
	sink       lattice.Sink
	classifier *threat.Classifier

	mu           sync.Mutex
	recentTasked map[string]time.Time
	now          func() time.Time
}

// New constructs an Engine wired to the given collaborators.
func New(matcher *correlation.Matcher, cache *trackcache.Cache, registry *assets.Registry, sink lattice.Sink) *Engine {
	return &Engine{
		matcher:      matcher,
		cache:        cache,
		registry:     registry,
		sink:         sink,
		classifier:   threat.New(),
		recentTasked: make(map[string]time.Time),
		now:          time.Now,
	}
}

// shouldTask reports whether entityID may be tasked now, debounced to at
// most once per DebounceWindow. Per-process state; there is no guarantee
// it survives a restart.
func (e *Engine) shouldTask(entityID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if last, ok := e.recentTasked[entityID]; ok && now.Sub(last) < DebounceWindow {
		return false
	}
	e.recentTasked[entityID] = now
	return true
}

// ProcessFused runs the fusion gate over optical and sar detection
// batches, then processes the merged stream. This is the entry point for
// raw per-sensor input, implementing the C8-invokes-C3 data flow. The
// " (Optical)"/" (SAR)" label suffixes the gate adds are stripped again
// before processing (the modality stays on Source), so label-based cueing,
// classification, and correlation see the plain detector label.
func (e *Engine) ProcessFused(optical, sar []detection.Detection, cfg fusion.Config) (Stats, error) {
	fused := fusion.Fuse(optical, sar, cfg)
	for i := range fused {
		fused[i].Label = strings.TrimSuffix(strings.TrimSuffix(fused[i].Label, " (Optical)"), " (SAR)")
	}
	return e.ProcessDetections(fused)
}

// ProcessDetections builds and publishes a track for every detection, then
// cues a task for any detection that is high-priority by label/confidence
// or flagged as loitering, subject to per-entity debouncing. Tasking is
// gated exactly as described: threat classification enriches the published
// track (and downstream relay priority) but never itself gates cueing.
//
// A sink failure is fatal for the batch: processing stops immediately and
// the error is returned alongside the stats accumulated so far, so the
// caller can surface a 5xx instead of reporting success. The decision
// engine never swallows a persistence error.
func (e *Engine) ProcessDetections(detections []detection.Detection) (Stats, error) {
	var stats Stats

	entities := make([]correlation.Entity, len(detections))
	for i, d := range detections {
		entities[i] = e.correlate(d)
	}
	inFormation := e.formationMembers(detections, entities)

	for i, d := range detections {
		entity := entities[i]

		track := lattice.BuildTrack(d, entity.ID, e.now())
		track.LifecycleState = string(entity.State)

		if d.HasGeo {
			e.cache.Update(entity.ID, d.GeoLocation)
		}

		isLoitering := analytics.DetectLoitering(e.cache, entity.ID)
		track.ThreatLevel = string(e.classifier.Classify(d.Label, d.Confidence, isLoitering, inFormation[entity.ID]))

		if err := e.sink.PublishTrack(track); err != nil {
			return stats, fmt.Errorf("publish track for entity %s: %w", entity.ID, err)
		}
		stats.Tracks++

		isHighPriority := HighPriorityLabels[d.Label] && d.Confidence >= ConfidenceThreshold

		if (isHighPriority || isLoitering) && e.shouldTask(entity.ID) {
			tasked, err := e.cueTask(d, entity.ID, isLoitering)
			if err != nil {
				return stats, fmt.Errorf("cue task for entity %s: %w", entity.ID, err)
			}
			if tasked {
				stats.Tasks++
			}
		}
	}

	return stats, nil
}

// formationMembers clusters the batch's geolocated detections and returns
// the set of entity IDs that landed in a reported formation.
func (e *Engine) formationMembers(detections []detection.Detection, entities []correlation.Entity) map[string]bool {
	var points []analytics.TrackPoint
	for i, d := range detections {
		if !d.HasGeo {
			continue
		}
		points = append(points, analytics.TrackPoint{EntityID: entities[i].ID, Point: d.GeoLocation})
	}

	members := make(map[string]bool)
	for _, f := range analytics.DetectFormation(points) {
		for _, id := range f.EntityIDs {
			members[id] = true
		}
	}
	return members
}

func (e *Engine) correlate(d detection.Detection) correlation.Entity {
	loc := d.GeoLocation // zero value (0,0) if HasGeo is false, matching the design's target fallback
	source := string(d.Source)
	if source == "" {
		source = "unknown"
	}
	return e.matcher.Correlate(d.Label, loc, d.Confidence, source)
}

func (e *Engine) cueTask(d detection.Detection, entityID string, isLoitering bool) (bool, error) {
	target := d.GeoLocation
	pool := e.registry.Available()
	asset, ok := e.registry.Assign(target, pool)

	assignedTo := "DISPATCH_PENDING"
	if ok {
		assignedTo = asset.ID
	}

	taskType := "VERIFICATION_REQUEST"
	priority := "MEDIUM"
	if isLoitering {
		taskType = "ANOMALY_VERIFICATION"
	}
	if d.Label == "airplane" || isLoitering {
		priority = "HIGH"
	}

	taskID, err := e.sink.PublishTask(lattice.TaskInput{
		TargetEntityID: entityID,
		Type:           taskType,
		Description:    fmt.Sprintf("Confirm %s at %s", d.Label, formatPoint(target)),
		Priority:       priority,
		AssignedTo:     assignedTo,
	})
	if err != nil {
		return false, err
	}

	if ok {
		e.registry.MarkTasked(asset.ID, taskID)
	}
	return true, nil
}

func formatPoint(p geo.Point) string {
	return fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lon)
}
