package relay

import (
	"testing"
	"time"

	"github.com/im-sham/ghost-sentry/internal/eventbus"
	"github.com/im-sham/ghost-sentry/internal/threat"
)

func TestTokenBucketAllowsWithinBurst(t *testing.T) {
	tb := NewTokenBucket(100, 1000)
	if !tb.Allow(500, PriorityLow) {
		t.Error("Allow should succeed within burst capacity")
	}
}

func TestTokenBucketRejectsOverBurst(t *testing.T) {
	tb := NewTokenBucket(10, 100)
	if tb.Allow(1000, PriorityLow) {
		t.Error("Allow should reject a request far exceeding burst capacity")
	}
}

func TestTokenBucketCriticalBypassesBudget(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	if !tb.Allow(1_000_000, PriorityCritical) {
		t.Error("CRITICAL priority must bypass the token budget")
	}
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	tb := NewTokenBucket(1_000_000, 10)
	tb.Allow(10, PriorityLow) // drain the bucket
	time.Sleep(5 * time.Millisecond)
	if !tb.Allow(10, PriorityLow) {
		t.Error("bucket should have refilled after elapsed time")
	}
}

func TestEventPriorityMapping(t *testing.T) {
	if EventPriority(threat.LevelCritical, true) != PriorityCritical {
		t.Error("CRITICAL level should map to PriorityCritical")
	}
	if EventPriority(threat.LevelLow, false) != PriorityNone {
		t.Error("absent level should map to PriorityNone")
	}
}

func TestCoalescerCollapsesPerEntity(t *testing.T) {
	c := NewCoalescer()
	c.Add(eventbus.Event{Type: eventbus.KindTrack, EntityID: "e1", Data: 1}, PriorityLow)
	c.Add(eventbus.Event{Type: eventbus.KindTrack, EntityID: "e1", Data: 2}, PriorityLow)

	got := c.Drain()
	if len(got) != 1 {
		t.Fatalf("len(Drain) = %d, want 1", len(got))
	}
	if got[0].Data != 2 {
		t.Errorf("Drain()[0].Data = %v, want latest value 2", got[0].Data)
	}
}

func TestCoalescerSortsByPriority(t *testing.T) {
	c := NewCoalescer()
	c.Add(eventbus.Event{EntityID: "low"}, PriorityLow)
	c.Add(eventbus.Event{EntityID: "crit"}, PriorityCritical)
	c.Add(eventbus.Event{EntityID: "med"}, PriorityMedium)

	got := c.Drain()
	if got[0].EntityID != "crit" || got[len(got)-1].EntityID != "low" {
		t.Errorf("Drain() order = %v, want highest priority first", got)
	}
}

func TestCoalescerKeepsDistinctKindsPerEntity(t *testing.T) {
	c := NewCoalescer()
	c.Add(eventbus.Event{Type: eventbus.KindTrack, EntityID: "e1", Data: "track"}, PriorityMedium)
	c.Add(eventbus.Event{Type: eventbus.KindTask, EntityID: "e1", Data: "task"}, PriorityHigh)

	got := c.Drain()
	if len(got) != 2 {
		t.Fatalf("len(Drain) = %d, want 2 (track and task must not evict one another)", len(got))
	}

	var sawTrack, sawTask bool
	for _, ev := range got {
		switch ev.Type {
		case eventbus.KindTrack:
			sawTrack = true
		case eventbus.KindTask:
			sawTask = true
		}
	}
	if !sawTrack || !sawTask {
		t.Errorf("Drain() = %+v, want both a track and a task event for e1", got)
	}
}

func TestCoalescerDrainClears(t *testing.T) {
	c := NewCoalescer()
	c.Add(eventbus.Event{EntityID: "e1"}, PriorityLow)
	c.Drain()
	if got := c.Drain(); len(got) != 0 {
		t.Errorf("second Drain() = %v, want empty", got)
	}
}
