package fusion

import (
	"testing"

	"github.com/im-sham/ghost-sentry/internal/detection"
)

func det(label string, conf float64) detection.Detection {
	return detection.Detection{Label: label, Confidence: conf}
}

func TestFuseGateAndOrder(t *testing.T) {
	optical := []detection.Detection{det("car", 0.5), det("truck", 0.9)}
	sar := []detection.Detection{det("boat", 0.7)}

	got := Fuse(optical, sar, Config{OpticalThreshold: 0.8})

	want := []string{"truck (Optical)", "boat (SAR)"}
	if len(got) != len(want) {
		t.Fatalf("len(Fuse) = %d, want %d", len(got), len(want))
	}
	for i, label := range want {
		if got[i].Label != label {
			t.Errorf("Fuse()[%d].Label = %q, want %q", i, got[i].Label, label)
		}
	}
}

func TestFuseSARAlwaysPassesThrough(t *testing.T) {
	sar := []detection.Detection{det("anything", 0.0)}
	got := Fuse(nil, sar, DefaultConfig())
	if len(got) != 1 || got[0].Label != "anything (SAR)" {
		t.Errorf("Fuse() = %v, want one SAR passthrough", got)
	}
}

func TestFuseOpticalExactlyAtThresholdPasses(t *testing.T) {
	optical := []detection.Detection{det("car", 0.5)}
	got := Fuse(optical, nil, Config{OpticalThreshold: 0.5})
	if len(got) != 1 {
		t.Fatalf("len(Fuse) = %d, want 1", len(got))
	}
}
