package assets

import (
	"testing"

	"github.com/im-sham/ghost-sentry/internal/geo"
)

func TestSeedFleetHasThreeAssets(t *testing.T) {
	r := New()
	if got := r.List(); len(got) != 3 {
		t.Fatalf("len(List) = %d, want 3", len(got))
	}
}

func TestScoreStrictlyIncreasesWithBatteryAndSignal(t *testing.T) {
	target := geo.Point{Lat: 0, Lon: 0}
	low := Asset{Location: geo.Point{Lat: 0, Lon: 0}, Battery: 0.1, Signal: 0.1}
	high := Asset{Location: geo.Point{Lat: 0, Lon: 0}, Battery: 0.9, Signal: 0.9}
	if Score(high, target) <= Score(low, target) {
		t.Errorf("Score did not increase with battery/signal: low=%v high=%v", Score(low, target), Score(high, target))
	}
}

func TestScoreFartherStrongerAssetBeatsCloseWeakOne(t *testing.T) {
	// S7: A is close but weak, B is farther but strong; B should win.
	a := Asset{Location: geo.Point{Lat: 0, Lon: 0}, Battery: 0.1, Signal: 1.0}
	b := Asset{Location: geo.Point{Lat: 0.01, Lon: 0}, Battery: 1.0, Signal: 1.0}
	target := geo.Point{Lat: 0, Lon: 0}
	if Score(b, target) <= Score(a, target) {
		t.Errorf("Score(B)=%v should exceed Score(A)=%v", Score(b, target), Score(a, target))
	}
}

func TestAssignEmptyPool(t *testing.T) {
	r := New()
	_, ok := r.Assign(geo.Point{}, nil)
	if ok {
		t.Error("Assign with empty pool should report false")
	}
}

func TestAssignPicksHighestScore(t *testing.T) {
	r := New()
	pool := r.Available()
	target := geo.Point{Lat: 33.94, Lon: -118.41} // exactly at drone-alpha
	got, ok := r.Assign(target, pool)
	if !ok || got.ID != "drone-alpha" {
		t.Errorf("Assign() = %v, ok=%v, want drone-alpha", got, ok)
	}
}

func TestUpdateTelemetryUnknownAsset(t *testing.T) {
	r := New()
	_, ok := r.UpdateTelemetry("nope", geo.Point{}, 1, 1)
	if ok {
		t.Error("UpdateTelemetry on unknown asset should report false")
	}
}

func TestUpdateTelemetryReplacesFields(t *testing.T) {
	r := New()
	got, ok := r.UpdateTelemetry("drone-alpha", geo.Point{Lat: 1, Lon: 2}, 0.5, 0.6)
	if !ok {
		t.Fatal("UpdateTelemetry failed")
	}
	if got.Location != (geo.Point{Lat: 1, Lon: 2}) || got.Battery != 0.5 || got.Signal != 0.6 || !got.HasHeartbeat {
		t.Errorf("UpdateTelemetry result = %+v", got)
	}
}
