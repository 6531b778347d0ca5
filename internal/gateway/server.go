// Package gateway exposes the tactical picture over HTTP and WebSocket:
// track/task/asset/mission CRUD-ish queries, CoT XML export, detection
// ingestion, and live streaming fan-out from the event bus.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/im-sham/ghost-sentry/internal/assets"
	"github.com/im-sham/ghost-sentry/internal/cot"
	"github.com/im-sham/ghost-sentry/internal/detection"
	"github.com/im-sham/ghost-sentry/internal/eventbus"
	"github.com/im-sham/ghost-sentry/internal/fusion"
	"github.com/im-sham/ghost-sentry/internal/sentry"
	"github.com/im-sham/ghost-sentry/internal/store"
)

// Version is reported on the root info endpoint and the health check.
const Version = "0.3.0"

// Server wires the store, event bus, asset registry, and decision engine
// to an HTTP surface. It is constructed once at startup and passed by
// reference.
type Server struct {
	store    *store.Store
	bus      *eventbus.Bus
	registry *assets.Registry
	engine   *sentry.Engine
	log      *slog.Logger

	upgrader websocket.Upgrader
}

// New constructs a Server.
func New(st *store.Store, bus *eventbus.Bus, registry *assets.Registry, engine *sentry.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:    st,
		bus:      bus,
		registry: registry,
		engine:   engine,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the complete routed, CORS-wrapped http.Handler. Every
// route is registered twice: once under /v1 and once unversioned, so
// legacy clients see identical semantics (spec's explicit requirement).
// corsOrigins configures the allowed cross-origin callers; an empty slice
// disables cross-origin access entirely.
func (s *Server) Handler(corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.registerBoth(mux, "GET /tracks", s.handleGetTracks)
	s.registerBoth(mux, "GET /tracks/{entity_id}/history", s.handleTrackHistory)
	s.registerBoth(mux, "GET /tracks/cot", s.handleTracksCoT)
	s.registerBoth(mux, "GET /tasks", s.handleGetTasks)
	s.registerBoth(mux, "PATCH /tasks/{task_id}/state", s.handleUpdateTaskState)
	s.registerBoth(mux, "POST /tasks/{task_id}/ack", s.handleAckTask)
	s.registerBoth(mux, "GET /timeline", s.handleTimeline)
	s.registerBoth(mux, "GET /assets", s.handleGetAssets)
	s.registerBoth(mux, "POST /assets/telemetry", s.handleAssetTelemetry)
	s.registerBoth(mux, "GET /missions", s.handleGetMissions)
	s.registerBoth(mux, "POST /missions", s.handleCreateMission)
	s.registerBoth(mux, "POST /detections", s.handleDetections)

	mux.HandleFunc("GET /ws/tracks", s.handleWebSocketTracks)
	mux.HandleFunc("GET /ws/cot", s.handleWebSocketCoT)

	opts := cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
	if len(corsOrigins) == 0 {
		// rs/cors treats an empty AllowedOrigins as "allow all"; reject instead.
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(opts).Handler(mux)
}

// registerBoth registers pattern (e.g. "GET /tracks") under both the /v1
// prefix and the bare legacy path, sharing one handler.
func (s *Server) registerBoth(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	method, path, _ := splitPattern(pattern)
	mux.HandleFunc(method+" /v1"+path, handler)
	mux.HandleFunc(method+" "+path, handler)
}

func splitPattern(pattern string) (method, path string, ok bool) {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			return pattern[:i], pattern[i+1:], true
		}
	}
	return "", pattern, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Ghost Sentry",
		"version":     Version,
		"description": "Autonomous ISR & anomaly detection pipeline",
		"endpoints": map[string]string{
			"health":            "/health",
			"tracks":            "/v1/tracks",
			"tasks":             "/v1/tasks",
			"assets":            "/v1/assets",
			"timeline":          "/v1/timeline",
			"cot":               "/v1/tracks/cot",
			"websocket_tracks":  "/ws/tracks",
			"websocket_cot":     "/ws/cot",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": Version})
}

func (s *Server) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.store.Tracks()
	if err != nil {
		s.log.Error("list tracks", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleTrackHistory(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entity_id")
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	hist, err := s.store.TrackHistory(entityID, limit)
	if err != nil {
		s.log.Error("track history", "entity_id", entityID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleTracksCoT(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.store.Tracks()
	if err != nil {
		s.log.Error("list tracks for cot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	body := ""
	for i, row := range tracks {
		d, ok := detectionFromTrackJSON(row.Data)
		if !ok {
			continue
		}
		if i > 0 {
			body += "\n"
		}
		body += cot.ToCursorOnTarget(d, now)
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.Tasks(r.URL.Query().Get("state"))
	if err != nil {
		s.log.Error("list tasks", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleUpdateTaskState(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "state is required", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateTaskState(taskID, state); err != nil {
		s.log.Error("update task state", "task_id", taskID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if task, err := s.store.TaskByID(taskID); err == nil && task.EntityID != "" {
		data := map[string]any{"type": "task_update", "task_id": taskID, "state": state}
		s.store.AddEvent("task_update", task.EntityID, data)
		s.bus.Publish(eventbus.Event{Type: eventbus.KindTaskUpdate, EntityID: task.EntityID, Data: data})
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "task_id": taskID, "state": state})
}

func (s *Server) handleAckTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	operatorID := r.URL.Query().Get("operator_id")
	if operatorID == "" {
		operatorID = "unknown"
	}

	task, err := s.store.TaskByID(taskID)
	if err != nil {
		// Unknown ID on lookup is a structured error body with HTTP 200,
		// matching legacy behavior (spec's explicit requirement).
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "task not found"})
		return
	}

	if task.State == "pending" {
		if err := s.store.UpdateTaskState(taskID, "assigned"); err != nil {
			s.log.Error("ack task: update state", "task_id", taskID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	if task.EntityID != "" {
		data := map[string]any{
			"type":            "task_ack",
			"task_id":         taskID,
			"operator_id":     operatorID,
			"acknowledged_at": time.Now().UTC().Format(time.RFC3339),
		}
		s.store.AddEvent("task_ack", task.EntityID, data)
		s.bus.Publish(eventbus.Event{Type: eventbus.KindTaskAck, EntityID: task.EntityID, Data: data})
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "acknowledged", "task_id": taskID})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.LatestEvents(100)
	if err != nil {
		s.log.Error("timeline", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleAssetTelemetry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetID := q.Get("asset_id")
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	battery, errBat := strconv.ParseFloat(q.Get("battery"), 64)
	signal, errSig := strconv.ParseFloat(q.Get("signal"), 64)
	if assetID == "" || errLat != nil || errLon != nil || errBat != nil || errSig != nil {
		http.Error(w, "asset_id, lat, lon, battery, signal are required", http.StatusBadRequest)
		return
	}

	asset, ok := s.registry.UpdateTelemetry(assetID, geoPoint(lat, lon), battery, signal)
	if !ok {
		// Unknown ID on lookup is a structured error body with HTTP 200,
		// matching legacy behavior (spec's explicit requirement).
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "asset not found"})
		return
	}

	data := map[string]any{"type": "asset_telemetry", "asset": asset}
	s.store.AddEvent("asset_telemetry", assetID, data)
	s.bus.Publish(eventbus.Event{Type: eventbus.KindAssetTelemetry, EntityID: assetID, Data: data})

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleGetMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.store.Missions()
	if err != nil {
		s.log.Error("list missions", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, missions)
}

type createMissionRequest struct {
	Name       string            `json:"name"`
	Geometries []json.RawMessage `json:"geometries"`
}

func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	var req createMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	geometries, err := json.Marshal(req.Geometries)
	if err != nil {
		http.Error(w, "malformed geometries", http.StatusBadRequest)
		return
	}

	missionID := uuid.NewString()
	if err := s.store.AddMission(store.Mission{ID: missionID, Name: req.Name, Geometries: geometries}); err != nil {
		s.log.Error("create mission", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "mission_id": missionID})
}

// detectionsRequest is the SPEC_FULL detection-ingestion payload: separate
// per-sensor batches run through the fusion gate before the decision
// engine sees them.
type detectionsRequest struct {
	Optical []detectionInput `json:"optical"`
	SAR     []detectionInput `json:"sar"`
}

type detectionInput struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	var req detectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	stats, err := s.engine.ProcessFused(toDetections(req.Optical), toDetections(req.SAR), fusion.DefaultConfig())
	if err != nil {
		s.log.Error("process detections", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": stats.Tracks, "tasks": stats.Tasks})
}

func toDetections(in []detectionInput) []detection.Detection {
	out := make([]detection.Detection, 0, len(in))
	for _, d := range in {
		det := detection.Detection{Label: d.Label, Confidence: d.Confidence}
		if d.Lat != nil && d.Lon != nil {
			det.HasGeo = true
			det.GeoLocation = geoPoint(*d.Lat, *d.Lon)
		}
		out = append(out, det)
	}
	return out
}
