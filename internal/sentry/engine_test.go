package sentry

import (
	"errors"
	"testing"
	"time"

	"github.com/im-sham/ghost-sentry/internal/assets"
	"github.com/im-sham/ghost-sentry/internal/correlation"
	"github.com/im-sham/ghost-sentry/internal/detection"
	"github.com/im-sham/ghost-sentry/internal/geo"
	"github.com/im-sham/ghost-sentry/internal/lattice"
	"github.com/im-sham/ghost-sentry/internal/trackcache"
)

// fakeSink records every publish in memory so tests can assert on cueing
// behavior without a real store or event bus.
type fakeSink struct {
	tracks      []lattice.Track
	tasks       []lattice.TaskInput
	trackErr    error
	nextTaskErr error
}

func (f *fakeSink) PublishTrack(t lattice.Track) error {
	if f.trackErr != nil {
		return f.trackErr
	}
	f.tracks = append(f.tracks, t)
	return nil
}

func (f *fakeSink) PublishTask(in lattice.TaskInput) (string, error) {
	if f.nextTaskErr != nil {
		err := f.nextTaskErr
		f.nextTaskErr = nil
		return "", err
	}
	f.tasks = append(f.tasks, in)
	return "t-" + in.TargetEntityID, nil
}

func newTestEngine() (*Engine, *fakeSink) {
	sink := &fakeSink{}
	e := New(correlation.New(), trackcache.New(), assets.New(), sink)
	return e, sink
}

func TestProcessDetectionsHighConfidenceAirplaneCuesTask(t *testing.T) {
	e, sink := newTestEngine()
	d := detection.Detection{
		Label: "airplane", Confidence: 0.92,
		HasGeo: true, GeoLocation: geo.Point{Lat: 33.94, Lon: -118.41},
		Source: detection.SourceOptical,
	}

	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tracks != 1 {
		t.Errorf("Tracks = %d, want 1", stats.Tracks)
	}
	if stats.Tasks != 1 {
		t.Errorf("Tasks = %d, want 1", stats.Tasks)
	}
	if len(sink.tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(sink.tasks))
	}
	if sink.tasks[0].Priority != "HIGH" {
		t.Errorf("Priority = %q, want HIGH", sink.tasks[0].Priority)
	}
	if sink.tasks[0].Type != "VERIFICATION_REQUEST" {
		t.Errorf("Type = %q, want VERIFICATION_REQUEST", sink.tasks[0].Type)
	}
}

func TestProcessDetectionsSubThresholdConfidenceNoTask(t *testing.T) {
	e, sink := newTestEngine()
	d := detection.Detection{Label: "airplane", Confidence: 0.5, HasGeo: true}

	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tracks != 1 {
		t.Errorf("Tracks = %d, want 1", stats.Tracks)
	}
	if stats.Tasks != 0 {
		t.Errorf("Tasks = %d, want 0", stats.Tasks)
	}
	if len(sink.tasks) != 0 {
		t.Errorf("len(tasks) = %d, want 0", len(sink.tasks))
	}
}

func TestProcessDetectionsNonTacticalLabelNoTask(t *testing.T) {
	e, _ := newTestEngine()
	d := detection.Detection{Label: "bicycle", Confidence: 0.99, HasGeo: true}

	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tracks != 1 {
		t.Errorf("Tracks = %d, want 1", stats.Tracks)
	}
	if stats.Tasks != 0 {
		t.Errorf("Tasks = %d, want 0", stats.Tasks)
	}
}

func TestProcessDetectionsLoiteringCuesTaskRegardlessOfLabel(t *testing.T) {
	e, sink := newTestEngine()

	// A car (not high-priority) sitting still for LoiterMinSamples
	// consecutive detections must still be cued once loitering fires.
	loc := geo.Point{Lat: 33.94, Lon: -118.41}
	var stats Stats
	for i := 0; i < 5; i++ {
		d := detection.Detection{Label: "car", Confidence: 0.4, HasGeo: true, GeoLocation: loc}
		var err error
		stats, err = e.ProcessDetections([]detection.Detection{d})
		if err != nil {
			t.Fatalf("ProcessDetections() error = %v", err)
		}
	}

	if stats.Tasks != 1 {
		t.Errorf("Tasks on final loitering pass = %d, want 1", stats.Tasks)
	}
	if len(sink.tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(sink.tasks))
	}
	if sink.tasks[0].Type != "ANOMALY_VERIFICATION" {
		t.Errorf("Type = %q, want ANOMALY_VERIFICATION", sink.tasks[0].Type)
	}
	if sink.tasks[0].Priority != "HIGH" {
		t.Errorf("Priority = %q, want HIGH", sink.tasks[0].Priority)
	}
}

func TestProcessDetectionsDebounceSuppressesRepeatTask(t *testing.T) {
	e, sink := newTestEngine()
	d := detection.Detection{Label: "airplane", Confidence: 0.95, HasGeo: true}

	if _, err := e.ProcessDetections([]detection.Detection{d}); err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}
	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tasks != 0 {
		t.Errorf("Tasks on second pass within debounce window = %d, want 0", stats.Tasks)
	}
	if len(sink.tasks) != 1 {
		t.Errorf("len(tasks) = %d, want 1 (only the first cue)", len(sink.tasks))
	}
}

func TestProcessDetectionsDebounceExpiresAfterWindow(t *testing.T) {
	e, sink := newTestEngine()
	start := time.Now()
	e.now = func() time.Time { return start }

	d := detection.Detection{Label: "airplane", Confidence: 0.95, HasGeo: true}
	if _, err := e.ProcessDetections([]detection.Detection{d}); err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	e.now = func() time.Time { return start.Add(DebounceWindow + time.Second) }
	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tasks != 1 {
		t.Errorf("Tasks after debounce window elapsed = %d, want 1", stats.Tasks)
	}
	if len(sink.tasks) != 2 {
		t.Errorf("len(tasks) = %d, want 2", len(sink.tasks))
	}
}

func TestProcessDetectionsSurfacesPublishTrackError(t *testing.T) {
	e, sink := newTestEngine()
	wantErr := errors.New("store unavailable")
	sink.trackErr = wantErr

	stats, err := e.ProcessDetections([]detection.Detection{{Label: "airplane", Confidence: 0.95, HasGeo: true}})

	if !errors.Is(err, wantErr) {
		t.Errorf("ProcessDetections() error = %v, want wrapping %v", err, wantErr)
	}
	if stats.Tracks != 0 {
		t.Errorf("Tracks = %d, want 0 when PublishTrack fails", stats.Tracks)
	}
	if stats.Tasks != 0 {
		t.Errorf("Tasks = %d, want 0 when the track publish failed first", stats.Tasks)
	}
}

func TestProcessDetectionsSurfacesPublishTaskError(t *testing.T) {
	e, sink := newTestEngine()
	wantErr := errors.New("task store unavailable")
	sink.nextTaskErr = wantErr

	d := detection.Detection{Label: "airplane", Confidence: 0.95, HasGeo: true}
	stats, err := e.ProcessDetections([]detection.Detection{d})

	if !errors.Is(err, wantErr) {
		t.Errorf("ProcessDetections() error = %v, want wrapping %v", err, wantErr)
	}
	if stats.Tracks != 1 {
		t.Errorf("Tracks = %d, want 1 (the track publish succeeded before cueing failed)", stats.Tracks)
	}
	if stats.Tasks != 0 {
		t.Errorf("Tasks = %d, want 0 when PublishTask fails", stats.Tasks)
	}
}

func TestCueTaskFallsBackToDispatchPendingWhenNoAssetAvailable(t *testing.T) {
	e, sink := newTestEngine()
	for _, a := range e.registry.List() {
		e.registry.MarkTasked(a.ID, "occupied")
	}

	d := detection.Detection{Label: "airplane", Confidence: 0.95, HasGeo: true, GeoLocation: geo.Point{Lat: 33.94, Lon: -118.41}}
	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tasks != 1 {
		t.Fatalf("Tasks = %d, want 1", stats.Tasks)
	}
	if sink.tasks[0].AssignedTo != "DISPATCH_PENDING" {
		t.Errorf("AssignedTo = %q, want DISPATCH_PENDING", sink.tasks[0].AssignedTo)
	}
}

func TestCueTaskAssignsNearestAvailableAsset(t *testing.T) {
	e, sink := newTestEngine()
	d := detection.Detection{Label: "airplane", Confidence: 0.95, HasGeo: true, GeoLocation: geo.Point{Lat: 33.94, Lon: -118.41}}

	stats, err := e.ProcessDetections([]detection.Detection{d})
	if err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if stats.Tasks != 1 {
		t.Fatalf("Tasks = %d, want 1", stats.Tasks)
	}
	if sink.tasks[0].AssignedTo != "drone-alpha" {
		t.Errorf("AssignedTo = %q, want drone-alpha (co-located seed asset)", sink.tasks[0].AssignedTo)
	}

	asset, ok := e.registry.Get("drone-alpha")
	if !ok || asset.Status != assets.StatusTasked {
		t.Errorf("drone-alpha status = %+v, want tasked", asset)
	}
}

func TestProcessDetectionsClassifiesThreatLevelOnTrack(t *testing.T) {
	e, sink := newTestEngine()
	d := detection.Detection{Label: "airplane", Confidence: 0.92, HasGeo: true, GeoLocation: geo.Point{Lat: 33.94, Lon: -118.41}}

	if _, err := e.ProcessDetections([]detection.Detection{d}); err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if sink.tracks[0].ThreatLevel != "HIGH" {
		t.Errorf("ThreatLevel = %q, want HIGH", sink.tracks[0].ThreatLevel)
	}
}

func TestProcessDetectionsFormationEscalatesThreatLevel(t *testing.T) {
	e, sink := newTestEngine()
	// Spaced ~330m apart: beyond the 100m correlation radius (so each
	// detection becomes its own entity) but within the 500m formation
	// clustering radius of the pivot.
	base := geo.Point{Lat: 33.94, Lon: -118.41}
	batch := []detection.Detection{
		{Label: "truck", Confidence: 0.5, HasGeo: true, GeoLocation: base},
		{Label: "truck", Confidence: 0.5, HasGeo: true, GeoLocation: geo.Point{Lat: base.Lat + 0.003, Lon: base.Lon}},
		{Label: "truck", Confidence: 0.5, HasGeo: true, GeoLocation: geo.Point{Lat: base.Lat, Lon: base.Lon + 0.003}},
	}

	if _, err := e.ProcessDetections(batch); err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	for _, tr := range sink.tracks {
		if tr.ThreatLevel != "HIGH" {
			t.Errorf("ThreatLevel = %q, want HIGH for formation member %s", tr.ThreatLevel, tr.EntityID)
		}
	}
}

func TestProcessDetectionsSharesEntityIDAcrossRepeatObservations(t *testing.T) {
	e, sink := newTestEngine()
	loc := geo.Point{Lat: 33.94, Lon: -118.41}

	if _, err := e.ProcessDetections([]detection.Detection{{Label: "car", Confidence: 0.5, HasGeo: true, GeoLocation: loc}}); err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}
	if _, err := e.ProcessDetections([]detection.Detection{{Label: "car", Confidence: 0.5, HasGeo: true, GeoLocation: loc}}); err != nil {
		t.Fatalf("ProcessDetections() error = %v", err)
	}

	if len(sink.tracks) != 2 {
		t.Fatalf("len(tracks) = %d, want 2", len(sink.tracks))
	}
	if sink.tracks[0].EntityID != sink.tracks[1].EntityID {
		t.Errorf("EntityID changed across repeat observations: %q != %q", sink.tracks[0].EntityID, sink.tracks[1].EntityID)
	}
}
