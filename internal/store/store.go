// Package store is the append-only/mutable persistence repository for
// events, tasks, and missions: the durable record behind every track,
// cueing decision, and operator-defined mission.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/im-sham/ghost-sentry/internal/hlc"
)

// ErrNotFound is returned when a lookup by ID matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a database/sql handle onto the ghost-sentry schema.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock *hlc.Clock
}

// Open opens (creating if needed) the sqlite database at path and applies
// any pending schema migrations.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not support concurrent writers

	if err := runMigrations(db, log); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, log: log, clock: hlc.NewClock(path)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EventRow is a row of the unified append-only event log.
type EventRow struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	EntityID  string          `json:"entity_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	HLC       string          `json:"hlc,omitempty"`
}

// AddEvent inserts a new row into the events table. data is marshaled to
// JSON before storage. Each row is stamped with the store's hybrid logical
// clock, giving every entity's event history a total order even when two
// inserts land in the same wall-clock tick (spec property 7).
func (s *Store) AddEvent(eventType, entityID string, data any) (EventRow, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal event data: %w", err)
	}
	stamp := s.clock.Now().String()

	res, err := s.db.Exec(
		"INSERT INTO events (type, entity_id, data, hlc) VALUES (?, ?, ?, ?)",
		eventType, nullableString(entityID), string(payload), stamp,
	)
	if err != nil {
		return EventRow{}, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return EventRow{}, fmt.Errorf("read inserted event id: %w", err)
	}

	row := s.db.QueryRow("SELECT created_at FROM events WHERE id = ?", id)
	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		return EventRow{}, fmt.Errorf("read inserted event timestamp: %w", err)
	}

	return EventRow{ID: id, Type: eventType, EntityID: entityID, Data: payload, CreatedAt: createdAt, HLC: stamp}, nil
}

// Tracks returns every "track" event, newest first by hybrid logical
// clock order (the total order created_at alone cannot guarantee).
func (s *Store) Tracks() ([]EventRow, error) {
	return s.queryEvents("SELECT id, type, entity_id, data, created_at, hlc FROM events WHERE type = 'track' ORDER BY hlc DESC")
}

// TrackHistory returns up to limit "track" events for entityID, newest
// first.
func (s *Store) TrackHistory(entityID string, limit int) ([]EventRow, error) {
	return s.queryEvents(
		"SELECT id, type, entity_id, data, created_at, hlc FROM events WHERE entity_id = ? AND type = 'track' ORDER BY hlc DESC LIMIT ?",
		entityID, limit,
	)
}

// LatestEvents returns the most recent limit events across all types,
// newest first.
func (s *Store) LatestEvents(limit int) ([]EventRow, error) {
	return s.queryEvents("SELECT id, type, entity_id, data, created_at, hlc FROM events ORDER BY hlc DESC LIMIT ?", limit)
}

func (s *Store) queryEvents(query string, args ...any) ([]EventRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		var entityID sql.NullString
		var data string
		var hlc sql.NullString
		if err := rows.Scan(&r.ID, &r.Type, &entityID, &data, &r.CreatedAt, &hlc); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.EntityID = entityID.String
		r.Data = json.RawMessage(data)
		r.HLC = hlc.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Task is a persisted cueing task.
type Task struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entity_id,omitempty"`
	Type       string          `json:"type"`
	State      string          `json:"state"`
	AssignedTo string          `json:"assigned_to,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AddTask inserts a new task row in the initial "pending" state.
func (s *Store) AddTask(t Task) error {
	payload, err := json.Marshal(t.Data)
	if err != nil {
		return fmt.Errorf("marshal task data: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO tasks (id, entity_id, type, data, assigned_to) VALUES (?, ?, ?, ?, ?)",
		t.ID, nullableString(t.EntityID), t.Type, string(payload), nullableString(t.AssignedTo),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTaskState sets a task's state and bumps its updated_at timestamp.
func (s *Store) UpdateTaskState(taskID, state string) error {
	_, err := s.db.Exec("UPDATE tasks SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", state, taskID)
	if err != nil {
		return fmt.Errorf("update task state: %w", err)
	}
	return nil
}

// Tasks returns tasks newest first, optionally filtered to a single state.
// An empty state returns every task.
func (s *Store) Tasks(state string) ([]Task, error) {
	var rows *sql.Rows
	var err error
	if state != "" {
		rows, err = s.db.Query("SELECT id, entity_id, type, state, assigned_to, data, created_at, updated_at FROM tasks WHERE state = ? ORDER BY created_at DESC", state)
	} else {
		rows, err = s.db.Query("SELECT id, entity_id, type, state, assigned_to, data, created_at, updated_at FROM tasks ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var entityID, assignedTo, data sql.NullString
		if err := rows.Scan(&t.ID, &entityID, &t.Type, &t.State, &assignedTo, &data, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.EntityID = entityID.String
		t.AssignedTo = assignedTo.String
		t.Data = json.RawMessage(data.String)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TaskByID returns a single task, or ErrNotFound.
func (s *Store) TaskByID(id string) (Task, error) {
	row := s.db.QueryRow("SELECT id, entity_id, type, state, assigned_to, data, created_at, updated_at FROM tasks WHERE id = ?", id)
	var t Task
	var entityID, assignedTo, data sql.NullString
	if err := row.Scan(&t.ID, &entityID, &t.Type, &t.State, &assignedTo, &data, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("scan task row: %w", err)
	}
	t.EntityID = entityID.String
	t.AssignedTo = assignedTo.String
	t.Data = json.RawMessage(data.String)
	return t, nil
}

// Mission is a persisted operator-defined area of interest.
type Mission struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Geometries json.RawMessage `json:"geometries"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AddMission inserts a new mission row.
func (s *Store) AddMission(m Mission) error {
	_, err := s.db.Exec("INSERT INTO missions (id, name, geometries) VALUES (?, ?, ?)", m.ID, m.Name, string(m.Geometries))
	if err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

// Missions returns every mission, newest first.
func (s *Store) Missions() ([]Mission, error) {
	rows, err := s.db.Query("SELECT id, name, geometries, created_at FROM missions ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query missions: %w", err)
	}
	defer rows.Close()

	var out []Mission
	for rows.Next() {
		var m Mission
		var geometries string
		if err := rows.Scan(&m.ID, &m.Name, &geometries, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mission row: %w", err)
		}
		m.Geometries = json.RawMessage(geometries)
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
