// Package correlation implements cross-sensor entity correlation with an
// explicit lifecycle state machine. It is the core spatial/temporal matcher
// that turns a stream of per-sensor detections into stable entity tracks.
package correlation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/im-sham/ghost-sentry/internal/geo"
)

// LifecycleState is the entity's place in the TENTATIVE -> FIRM -> STALE ->
// DROPPED progression.
type LifecycleState string

const (
	StateTentative LifecycleState = "TENTATIVE"
	StateFirm      LifecycleState = "FIRM"
	StateStale     LifecycleState = "STALE"
	StateDropped   LifecycleState = "DROPPED"
)

const (
	// CorrelationRadiusM is the maximum distance, in metres, for a new
	// observation to be matched to an existing entity.
	CorrelationRadiusM = 100.0
	// CorrelationTimeWindow bounds how stale a candidate entity may be
	// and still be eligible for correlation.
	CorrelationTimeWindow = 60 * time.Second
	// FirmObservationThreshold is the observation count at which a
	// TENTATIVE entity is promoted to FIRM.
	FirmObservationThreshold = 2

	tentativeTTL = 30 * time.Second
	firmTTL      = 5 * time.Minute
	staleTTL     = 10 * time.Minute
)

// Entity is a mutable, matcher-owned record of a correlated entity.
// Consumers must treat values returned from the matcher as immutable
// snapshots: the matcher is the sole mutator.
type Entity struct {
	ID          string
	Type        string
	Location    geo.Point
	Confidence  float64
	State       LifecycleState
	ObservationCount int
	FirstSeen   time.Time
	LastSeen    time.Time
	Sources     []string
}

// snapshot returns a copy of the entity safe to hand to callers outside the
// matcher's lock.
func (e *Entity) snapshot() Entity {
	out := *e
	out.Sources = append([]string(nil), e.Sources...)
	return out
}

func (e *Entity) update(loc geo.Point, confidence float64, source string, now time.Time) {
	e.Location = loc
	if confidence > e.Confidence {
		e.Confidence = confidence
	}
	e.ObservationCount++
	e.LastSeen = now
	if !containsString(e.Sources, source) {
		e.Sources = append(e.Sources, source)
	}
	if e.State == StateTentative && e.ObservationCount >= FirmObservationThreshold {
		e.State = StateFirm
	}
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Entity) refreshLifecycle(now time.Time) {
	if e.State == StateDropped {
		return
	}
	age := now.Sub(e.LastSeen)
	switch e.State {
	case StateTentative:
		if age > tentativeTTL {
			e.State = StateDropped
		}
	case StateFirm:
		if age > firmTTL {
			e.State = StateStale
		}
	case StateStale:
		if age > staleTTL {
			e.State = StateDropped
		}
	}
}

// Matcher correlates detections into lifecycle-managed entities. It is a
// process-wide registry: constructed once, passed by reference, and safe
// for concurrent use.
type Matcher struct {
	mu        sync.Mutex
	entities  map[string]*Entity
	order     []string // insertion order, for a deterministic tie-break
	radiusDeg float64
	now       func() time.Time
}

// New constructs an empty Matcher using the flat-earth correlation radius.
func New() *Matcher {
	return &Matcher{
		entities:  make(map[string]*Entity),
		radiusDeg: geo.MetersToDegrees(CorrelationRadiusM),
		now:       time.Now,
	}
}

// Correlate matches or creates an entity for the given observation and
// returns a snapshot of the (possibly newly created) entity.
func (m *Matcher) Correlate(entityType string, loc geo.Point, confidence float64, source string) Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneDropped()

	if e := m.findMatch(entityType, loc, now); e != nil {
		e.update(loc, confidence, source, now)
		return e.snapshot()
	}

	e := &Entity{
		ID:               uuid.NewString(),
		Type:             entityType,
		Location:         loc,
		Confidence:       confidence,
		State:            StateTentative,
		ObservationCount: 1,
		FirstSeen:        now,
		LastSeen:         now,
		Sources:          []string{source},
	}
	m.entities[e.ID] = e
	m.order = append(m.order, e.ID)
	return e.snapshot()
}

// findMatch returns the non-dropped, same-type, recently-seen entity
// nearest to loc within the correlation radius, or nil. Candidates are
// walked in insertion order and a strict less-than keeps the winner, so
// ties on distance resolve to the first-inserted entity, deterministically
// and repeatably across calls in the same process.
func (m *Matcher) findMatch(entityType string, loc geo.Point, now time.Time) *Entity {
	var best *Entity
	var bestDist float64

	for _, id := range m.order {
		e, ok := m.entities[id]
		if !ok || e.State == StateDropped || e.Type != entityType {
			continue
		}
		if now.Sub(e.LastSeen) > CorrelationTimeWindow {
			continue
		}
		d := geo.Distance(e.Location, loc)
		if d > m.radiusDeg {
			continue
		}
		if best == nil || d < bestDist {
			best = e
			bestDist = d
		}
	}
	return best
}

func (m *Matcher) pruneDropped() {
	now := m.now()
	for _, e := range m.entities {
		e.refreshLifecycle(now)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		e, ok := m.entities[id]
		if !ok {
			continue
		}
		if e.State == StateDropped {
			delete(m.entities, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// Get returns a snapshot of the entity with the given ID, refreshing its
// lifecycle state first. The bool is false if no such entity exists (or it
// has just been dropped by the refresh).
func (m *Matcher) Get(id string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return Entity{}, false
	}
	e.refreshLifecycle(m.now())
	if e.State == StateDropped {
		delete(m.entities, id)
		return Entity{}, false
	}
	return e.snapshot(), true
}

// ActiveEntities returns a snapshot of every non-dropped entity, after
// sweeping staleness.
func (m *Matcher) ActiveEntities() []Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneDropped()
	out := make([]Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e.snapshot())
	}
	return out
}

// FirmEntities returns a snapshot of every entity currently in the FIRM
// state, after sweeping staleness.
func (m *Matcher) FirmEntities() []Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneDropped()
	out := make([]Entity, 0)
	for _, e := range m.entities {
		if e.State == StateFirm {
			out = append(out, e.snapshot())
		}
	}
	return out
}

// Count returns the number of non-dropped entities, after sweeping
// staleness.
func (m *Matcher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneDropped()
	return len(m.entities)
}
