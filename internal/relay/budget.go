// Package relay bounds how much a slow streaming subscriber can cost the
// gateway: a token bucket rate-limits outbound bytes per connection, and a
// coalescer collapses backlogged per-entity events down to the latest one
// so a lagging client catches up instead of replaying every intermediate
// frame.
package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/im-sham/ghost-sentry/internal/eventbus"
	"github.com/im-sham/ghost-sentry/internal/threat"
)

// Priority constants for event ordering. Higher value = higher priority.
const (
	PriorityNone     = 0
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityCritical = 4
)

// TokenBucket implements a token-bucket rate limiter measured in bytes.
type TokenBucket struct {
	mu        sync.Mutex
	tokens    float64
	maxTokens float64
	rate      float64 // bytes per second
	lastTime  time.Time
}

// NewTokenBucket creates a token bucket with the given fill rate and burst
// capacity.
func NewTokenBucket(bytesPerSec, burstBytes float64) *TokenBucket {
	return &TokenBucket{
		tokens:    burstBytes,
		maxTokens: burstBytes,
		rate:      bytesPerSec,
		lastTime:  time.Now(),
	}
}

// Allow checks whether the given number of bytes can be sent right now.
// Events at PriorityCritical always bypass the budget check: a CRITICAL
// threat cue must never be throttled away.
func (tb *TokenBucket) Allow(bytes int, priority int) bool {
	if priority >= PriorityCritical {
		return true
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastTime).Seconds()
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastTime = now

	cost := float64(bytes)
	if cost > tb.tokens {
		return false
	}
	tb.tokens -= cost
	return true
}

// EventPriority maps an event's threat level (when present in its payload)
// to a relay priority. Events without a discernible threat level (tasks,
// telemetry, task updates) get PriorityNone, which still ships — it simply
// never bypasses the token bucket.
func EventPriority(level threat.Level, ok bool) int {
	if !ok {
		return PriorityNone
	}
	switch level {
	case threat.LevelCritical:
		return PriorityCritical
	case threat.LevelHigh:
		return PriorityHigh
	case threat.LevelMedium:
		return PriorityMedium
	case threat.LevelLow:
		return PriorityLow
	default:
		return PriorityNone
	}
}

// queued pairs a bus event with the relay priority it was coalesced at.
type queued struct {
	event    eventbus.Event
	priority int
}

// coalesceKey identifies the slot an event collapses into: an entity's
// Track and Task events must never evict one another, so the key carries
// both the entity ID and the event kind.
type coalesceKey struct {
	entityID string
	kind     eventbus.Kind
}

// Coalescer deduplicates per-(entity, kind) events, keeping only the
// latest queued event per key. Events with no entity ID (fleet-wide
// telemetry, etc.) are never coalesced away.
type Coalescer struct {
	mu       sync.Mutex
	byEntity map[coalesceKey]queued
	global   []queued
	order    []coalesceKey // insertion order for fairness
}

// NewCoalescer creates an empty event coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{byEntity: make(map[coalesceKey]queued)}
}

// Add queues an event at the given priority. A later Add for the same
// (EntityID, Type) replaces the earlier one; a Track and a Task event for
// the same entity are distinct keys and coexist.
func (c *Coalescer) Add(event eventbus.Event, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.EntityID == "" {
		c.global = append(c.global, queued{event: event, priority: priority})
		return
	}

	key := coalesceKey{entityID: event.EntityID, kind: event.Type}
	if _, exists := c.byEntity[key]; !exists {
		c.order = append(c.order, key)
	}
	c.byEntity[key] = queued{event: event, priority: priority}
}

// Drain returns all queued events sorted by priority (highest first,
// insertion order within a priority tier) and clears the queue.
func (c *Coalescer) Drain() []eventbus.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]queued, 0, len(c.byEntity)+len(c.global))
	for _, key := range c.order {
		if q, ok := c.byEntity[key]; ok {
			items = append(items, q)
		}
	}
	items = append(items, c.global...)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].priority > items[j].priority
	})

	result := make([]eventbus.Event, len(items))
	for i, q := range items {
		result[i] = q.event
	}

	c.byEntity = make(map[coalesceKey]queued)
	c.global = nil
	c.order = nil

	return result
}
