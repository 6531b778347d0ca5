package lattice

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/im-sham/ghost-sentry/internal/eventbus"
	"github.com/im-sham/ghost-sentry/internal/store"
)

// Mode selects where a Sink actually delivers published tracks and tasks.
type Mode string

const (
	// ModeDev persists to the local store and fans out on the event bus.
	ModeDev Mode = "dev"
	// ModeProd would hand off to the downstream Lattice integration; that
	// integration is out of scope here, so prod mode only logs the
	// would-be publish.
	ModeProd Mode = "prod"
)

// ErrLatticeEndpointRequired is returned by NewSink when constructing a
// ModeProd sink without a configured endpoint.
var ErrLatticeEndpointRequired = fmt.Errorf("lattice: LATTICE_ENDPOINT is required for prod mode")

// TaskInput is the payload the sentry engine hands the sink when cueing a
// task, prior to the store assigning it an ID.
type TaskInput struct {
	TargetEntityID string
	Type           string
	Description    string
	Priority       string
	AssignedTo     string
}

// Sink is the narrow interface the sentry decision engine publishes
// through. It deliberately says nothing about transport: dev mode is local
// persistence plus the event bus, prod mode is a stand-in for the real
// downstream Lattice integration (out of scope).
type Sink interface {
	PublishTrack(Track) error
	PublishTask(TaskInput) (taskID string, err error)
}

// devSink is the default sink: every publish lands in the local store and
// is fanned out on the bus.
type devSink struct {
	store *store.Store
	bus   *eventbus.Bus
	log   *slog.Logger
}

// prodSink is a stand-in for the real downstream Lattice integration.
type prodSink struct {
	endpoint string
	log      *slog.Logger
}

// NewSink constructs a Sink for the given mode. A ModeProd sink requires a
// non-empty endpoint and fails construction (not first publish) if one is
// not supplied, matching the fail-fast contract in the design.
func NewSink(mode Mode, st *store.Store, bus *eventbus.Bus, endpoint string, log *slog.Logger) (Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	switch mode {
	case ModeProd:
		if endpoint == "" {
			return nil, ErrLatticeEndpointRequired
		}
		log.Info("lattice sink initialized for prod", "endpoint", endpoint)
		return &prodSink{endpoint: endpoint, log: log}, nil
	case ModeDev, "":
		return &devSink{store: st, bus: bus, log: log}, nil
	default:
		return nil, fmt.Errorf("lattice: unknown sink mode %q", mode)
	}
}

func (s *devSink) PublishTrack(t Track) error {
	if _, err := s.store.AddEvent("track", t.EntityID, t); err != nil {
		return fmt.Errorf("persist track: %w", err)
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.KindTrack, EntityID: t.EntityID, Data: t})
	return nil
}

func (s *devSink) PublishTask(in TaskInput) (string, error) {
	taskID := uuid.NewString()

	if err := s.store.AddTask(store.Task{
		ID:         taskID,
		EntityID:   in.TargetEntityID,
		Type:       in.Type,
		AssignedTo: in.AssignedTo,
	}); err != nil {
		return "", fmt.Errorf("persist task: %w", err)
	}

	eventData := map[string]any{
		"id":               taskID,
		"state":            "pending",
		"type":             in.Type,
		"target_entity_id": in.TargetEntityID,
		"description":      in.Description,
		"priority":         in.Priority,
		"assigned_to":      in.AssignedTo,
	}
	if _, err := s.store.AddEvent("task", in.TargetEntityID, eventData); err != nil {
		return "", fmt.Errorf("persist task event: %w", err)
	}

	s.bus.Publish(eventbus.Event{Type: eventbus.KindTask, EntityID: in.TargetEntityID, Data: eventData})
	return taskID, nil
}

// toAny wraps v in a protobuf Any carrying a generic Struct, the opaque
// payload representation the real downstream Lattice integration expects
// instead of a typed message.
func toAny(v any) (*anypb.Any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal payload as struct: %w", err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build protobuf struct: %w", err)
	}
	return anypb.New(s)
}

func (s *prodSink) PublishTrack(t Track) error {
	payload, err := toAny(t)
	if err != nil {
		return fmt.Errorf("encode track for lattice: %w", err)
	}
	s.log.Info("[PROD] would publish track", "entity_id", t.EntityID, "endpoint", s.endpoint, "payload_bytes", len(payload.GetValue()))
	return nil
}

func (s *prodSink) PublishTask(in TaskInput) (string, error) {
	taskID := uuid.NewString()
	payload, err := toAny(in)
	if err != nil {
		return "", fmt.Errorf("encode task for lattice: %w", err)
	}
	s.log.Info("[PROD] would publish task", "target_entity_id", in.TargetEntityID, "endpoint", s.endpoint, "payload_bytes", len(payload.GetValue()))
	return taskID, nil
}
