// Package assets maintains the tactical asset fleet: seed state, telemetry
// updates, availability, multi-criteria scoring, and assignment.
package assets

import (
	"sync"
	"time"

	"github.com/im-sham/ghost-sentry/internal/geo"
)

// Status is an asset's tasking state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusTasked    Status = "tasked"
	StatusReturning Status = "returning"
)

// Domain is the operating medium of an asset.
type Domain string

const (
	DomainAir  Domain = "air"
	DomainLand Domain = "land"
)

// Asset is a tactical platform available for cueing.
type Asset struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Location      geo.Point `json:"location"`
	Status        Status    `json:"status"`
	Domain        Domain    `json:"domain"`
	Battery       float64   `json:"battery"`
	Signal        float64   `json:"signal"`
	CurrentTaskID string    `json:"current_task_id,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
	HasHeartbeat  bool      `json:"-"`
}

// seedFleet is the fixed initial fleet, matching the original mock assets.
func seedFleet() []*Asset {
	return []*Asset{
		{ID: "drone-alpha", Type: "UAV", Location: geo.Point{Lat: 33.94, Lon: -118.41}, Status: StatusIdle, Domain: DomainAir, Battery: 1.0, Signal: 1.0},
		{ID: "drone-beta", Type: "UAV", Location: geo.Point{Lat: 33.95, Lon: -118.40}, Status: StatusIdle, Domain: DomainAir, Battery: 1.0, Signal: 1.0},
		{ID: "ugv-sierra", Type: "UGV", Location: geo.Point{Lat: 33.93, Lon: -118.42}, Status: StatusIdle, Domain: DomainLand, Battery: 1.0, Signal: 1.0},
	}
}

// scoreMaxRangeDeg is the distance, in degrees, at which distance_score
// bottoms out at zero.
const scoreMaxRangeDeg = 0.1

// Registry owns the fleet. It is constructed once at startup and passed by
// reference; all operations are linearizable under its lock.
type Registry struct {
	mu     sync.Mutex
	fleet  map[string]*Asset
	order  []string
	now    func() time.Time
}

// New constructs a Registry seeded with the fixed mock fleet.
func New() *Registry {
	r := &Registry{
		fleet: make(map[string]*Asset),
		now:   time.Now,
	}
	for _, a := range seedFleet() {
		r.fleet[a.ID] = a
		r.order = append(r.order, a.ID)
	}
	return r
}

// Score computes the multi-criteria desirability of asset for target:
// 0.4*distance_score + 0.3*battery + 0.3*signal, where distance_score is
// max(0, 1 - d/0.1) in degrees.
func Score(asset Asset, target geo.Point) float64 {
	d := geo.Distance(asset.Location, target)
	distanceScore := 1 - d/scoreMaxRangeDeg
	if distanceScore < 0 {
		distanceScore = 0
	}
	return 0.4*distanceScore + 0.3*asset.Battery + 0.3*asset.Signal
}

// List returns a snapshot of every asset, in seed/registration order.
func (r *Registry) List() []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Asset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.fleet[id])
	}
	return out
}

// Available returns a snapshot of every idle asset, in registration order.
func (r *Registry) Available() []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Asset
	for _, id := range r.order {
		a := r.fleet[id]
		if a.Status == StatusIdle {
			out = append(out, *a)
		}
	}
	return out
}

// Assign picks the available-pool element with the highest score against
// target, ties broken by pool order, and reports it via the bool. An empty
// pool returns the zero Asset and false.
func (r *Registry) Assign(target geo.Point, pool []Asset) (Asset, bool) {
	if len(pool) == 0 {
		return Asset{}, false
	}
	best := pool[0]
	bestScore := Score(best, target)
	for _, a := range pool[1:] {
		s := Score(a, target)
		if s > bestScore {
			best = a
			bestScore = s
		}
	}
	return best, true
}

// UpdateTelemetry replaces an asset's location, battery, and signal and
// stamps the heartbeat time. It reports false if id is unknown.
func (r *Registry) UpdateTelemetry(id string, loc geo.Point, battery, signal float64) (Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.fleet[id]
	if !ok {
		return Asset{}, false
	}
	a.Location = loc
	a.Battery = battery
	a.Signal = signal
	a.LastHeartbeat = r.now()
	a.HasHeartbeat = true
	return *a, true
}

// Get returns a snapshot of the asset with the given ID.
func (r *Registry) Get(id string) (Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.fleet[id]
	if !ok {
		return Asset{}, false
	}
	return *a, true
}

// MarkTasked sets an asset's status to tasked and records the assigned
// task ID. Used once a task has actually been issued against it.
func (r *Registry) MarkTasked(id, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.fleet[id]; ok {
		a.Status = StatusTasked
		a.CurrentTaskID = taskID
	}
}
