package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/im-sham/ghost-sentry/internal/cot"
	"github.com/im-sham/ghost-sentry/internal/eventbus"
	"github.com/im-sham/ghost-sentry/internal/lattice"
	"github.com/im-sham/ghost-sentry/internal/relay"
	"github.com/im-sham/ghost-sentry/internal/threat"
)

// wsBytesPerSec/wsBurstBytes bound how fast a single slow subscriber can be
// fed before its backlog is coalesced down to one frame per entity and
// event kind.
const (
	wsBytesPerSec = 256_000.0
	wsBurstBytes  = 512_000.0
	wsDrainPeriod = 200 * time.Millisecond
)

// trackEventPriority maps a bus event carrying a lattice.Track to its relay
// priority via the track's classified threat level. Non-track events (task
// updates, telemetry) get PriorityNone and simply ride the coalescer.
func trackEventPriority(ev eventbus.Event) int {
	t, ok := ev.Data.(lattice.Track)
	if !ok || t.ThreatLevel == "" {
		return relay.PriorityNone
	}
	return relay.EventPriority(threat.Level(t.ThreatLevel), true)
}

// handleWebSocketTracks streams a snapshot of persisted tracks and current
// asset telemetry, then fans out every subsequent bus event as JSON,
// rate-limited and coalesced per connection. Per the design,
// snapshot-then-stream is not atomic: a client may see a track twice and
// must be idempotent on entityId.
func (s *Server) handleWebSocketTracks(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "endpoint", "/ws/tracks", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer sub.Close()

	tracks, err := s.store.Tracks()
	if err != nil {
		s.log.Error("snapshot tracks for websocket", "error", err)
		return
	}
	for _, row := range tracks {
		if err := conn.WriteJSON(row.Data); err != nil {
			return
		}
	}
	for _, asset := range s.registry.List() {
		if err := conn.WriteJSON(map[string]any{"type": "asset_telemetry", "asset": asset}); err != nil {
			return
		}
	}

	bucket := relay.NewTokenBucket(wsBytesPerSec, wsBurstBytes)
	coalescer := relay.NewCoalescer()
	ticker := time.NewTicker(wsDrainPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			coalescer.Add(ev, trackEventPriority(ev))
		case <-ticker.C:
			for _, ev := range coalescer.Drain() {
				if !bucket.Allow(wsFrameCost, trackEventPriority(ev)) {
					continue
				}
				if err := conn.WriteJSON(ev.Data); err != nil {
					return
				}
			}
		}
	}
}

// wsFrameCost is a flat per-frame byte estimate used by the token bucket;
// exact marshaled size isn't worth computing twice per frame.
const wsFrameCost = 512

// handleWebSocketCoT streams a snapshot of current tracks rendered as CoT
// XML text frames, then live CoT frames for every subsequent track event,
// subject to the same per-connection rate limit and coalescing.
func (s *Server) handleWebSocketCoT(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "endpoint", "/ws/cot", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer sub.Close()

	tracks, err := s.store.Tracks()
	if err != nil {
		s.log.Error("snapshot tracks for cot websocket", "error", err)
		return
	}
	for _, row := range tracks {
		d, ok := detectionFromTrackJSON(row.Data)
		if !ok {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(cot.ToCursorOnTarget(d, time.Now()))); err != nil {
			return
		}
	}

	bucket := relay.NewTokenBucket(wsBytesPerSec, wsBurstBytes)
	coalescer := relay.NewCoalescer()
	ticker := time.NewTicker(wsDrainPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if ev.Type != eventbus.KindTrack {
				continue
			}
			coalescer.Add(ev, trackEventPriority(ev))
		case <-ticker.C:
			for _, ev := range coalescer.Drain() {
				t, ok := ev.Data.(lattice.Track)
				if !ok {
					continue
				}
				if !bucket.Allow(wsFrameCost, trackEventPriority(ev)) {
					continue
				}
				xml := cot.ToCursorOnTarget(trackToDetection(t), time.Now())
				if err := conn.WriteMessage(websocket.TextMessage, []byte(xml)); err != nil {
					return
				}
			}
		}
	}
}
