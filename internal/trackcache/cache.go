// Package trackcache holds a bounded history of recent positions per entity,
// used by the behavioral analytics component to detect loitering.
package trackcache

import (
	"sync"
	"time"

	"github.com/im-sham/ghost-sentry/internal/geo"
)

// maxHistory is the cap on retained positions per entity, matching the
// original implementation's ring of the 20 most recent samples.
const maxHistory = 20

// Sample is a single timestamped position.
type Sample struct {
	At   time.Time
	Point geo.Point
}

// Cache is a process-wide registry of recent positions, keyed by entity ID.
// It is constructed once at startup and passed by reference; there is no
// package-level state.
type Cache struct {
	mu        sync.Mutex
	positions map[string][]Sample
	now       func() time.Time
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{
		positions: make(map[string][]Sample),
		now:       time.Now,
	}
}

// Update appends a position for entityID, dropping the oldest sample once
// the history exceeds maxHistory entries.
func (c *Cache) Update(entityID string, p geo.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := append(c.positions[entityID], Sample{At: c.now(), Point: p})
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	c.positions[entityID] = hist
}

// Positions returns a copy of the retained samples for entityID, oldest
// first. The returned slice is safe for the caller to read without further
// synchronization.
func (c *Cache) Positions(entityID string) []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := c.positions[entityID]
	out := make([]Sample, len(hist))
	copy(out, hist)
	return out
}

// Clear discards all retained history. Used by tests.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = make(map[string][]Sample)
}
