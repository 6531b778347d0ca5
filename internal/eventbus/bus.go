// Package eventbus is the in-process publish/subscribe fan-out for track,
// task, and telemetry events. Delivery to any one subscriber is
// best-effort: a slow or disconnected subscriber never blocks the
// publisher, and a failure on one subscriber never affects another.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Kind is the closed set of event type discriminators carried on the wire.
type Kind string

const (
	KindTrack         Kind = "track"
	KindTask          Kind = "task"
	KindTaskUpdate    Kind = "task_update"
	KindTaskAck       Kind = "task_ack"
	KindAssetTelemetry Kind = "asset_telemetry"
)

// Event is a tagged record published to every subscriber. Data is the
// domain payload (a Track, Task, or telemetry snapshot) rendered to its
// wire representation by the caller before publishing.
type Event struct {
	Type     Kind
	EntityID string
	Data     any
}

// subscription is a bounded per-subscriber queue.
type subscription struct {
	id     string
	events chan Event
}

// Subscription is the handle a caller uses to read from and close a bus
// subscription.
type Subscription struct {
	Events <-chan Event

	bus *Bus
	sub *subscription
}

// Close detaches the subscription from the bus and discards any unread
// items. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.sub)
}

// queueCapacity bounds how far a subscriber may lag before its events start
// being dropped, keeping the publisher non-blocking.
const queueCapacity = 256

// Bus is the process-wide subscriber registry. It is constructed once and
// passed by reference; subscribe/publish/remove are linearizable.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscription
	log  *slog.Logger
}

// New constructs an empty Bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[string]*subscription), log: log}
}

// Subscribe registers a new bounded queue and returns a handle to it.
func (b *Bus) Subscribe() *Subscription {
	sub := &subscription{
		id:     uuid.NewString(),
		events: make(chan Event, queueCapacity),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return &Subscription{Events: sub.events, bus: b, sub: sub}
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.events)
}

// Publish fans event out to every current subscriber's queue. A full queue
// drops the event rather than blocking; the drop is logged but does not
// affect any other subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.events <- event:
		default:
			b.log.Warn("dropping event for slow subscriber", "subscriber", sub.id, "event_type", event.Type)
		}
	}
}

// SubscriberCount reports the number of currently attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
