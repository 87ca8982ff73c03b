// Package events implements the orchestrator's event bus (spec.md §4.9,
// §6.5): every materialized translate/store/delete operation publishes a
// structured event, subscribers register for a specific type or the
// wildcard "*", and a bounded history is kept for late joiners.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is the event's type tag, e.g. "AgentIngested".
type Type string

const (
	AgentIngested       Type = "AgentIngested"
	AgentTranslated     Type = "AgentTranslated"
	AgentStored         Type = "AgentStored"
	AgentDeleted        Type = "AgentDeleted"
	AdapterHealthChange Type = "AdapterHealthChanged"
)

// Primitive is the coarse-grained subject of an event (spec.md §6.5).
type Primitive string

const (
	PrimitiveAgent       Primitive = "agent"
	PrimitiveTranslation Primitive = "translation"
	PrimitiveStorage     Primitive = "storage"
)

// SchemaVersion is bumped whenever Event's field set changes (spec.md §6.4).
const SchemaVersion = "v1"

// Event is the structured record published to every subscriber.
type Event struct {
	EventID       string
	SchemaVersion string
	Type          Type
	Primitive     Primitive
	TimestampNano int64
	CorrelationID string
	Payload       map[string]interface{}
}

// Wildcard matches every event type when passed to Subscribe.
const Wildcard = Type("*")

type subscription struct {
	id        string
	eventType Type
	ch        chan Event
}

// Bus is a bounded, mutex-protected publish/subscribe event bus.
// Delivery is per-subscriber FIFO (spec.md §5); there is no ordering
// guarantee across subscribers.
type Bus struct {
	mu         sync.Mutex
	subs       []subscription
	history    []Event
	maxHistory int
	disposed   bool
}

// New constructs a Bus with a bounded history of at most maxHistory
// events (FIFO eviction once full). maxHistory <= 0 means unbounded
// growth is disallowed: a minimum of 1 is enforced.
func New(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &Bus{maxHistory: maxHistory}
}

// Subscription is a handle a caller uses to drain delivered events and
// eventually unsubscribe.
type Subscription struct {
	id  string
	ch  chan Event
	bus *Bus
}

// Events returns the channel events are delivered on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// Subscribe registers for events of eventType (or events.Wildcard for
// all types), returning a handle whose channel receives a bounded
// buffer of future events.
func (b *Bus) Subscribe(eventType Type) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, 64)
	b.subs = append(b.subs, subscription{id: id, eventType: eventType, ch: ch})
	return &Subscription{id: id, ch: ch, bus: b}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			close(s.ch)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish appends evt to history (evicting the oldest entry if at
// capacity) and delivers it to every matching subscriber on a
// best-effort, non-blocking basis: a subscriber whose buffer is full
// misses the event rather than stalling the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return
	}
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.SchemaVersion == "" {
		evt.SchemaVersion = SchemaVersion
	}
	if evt.TimestampNano == 0 {
		evt.TimestampNano = time.Now().UnixNano()
	}

	b.history = append(b.history, evt)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}

	for _, s := range b.subs {
		if s.eventType != Wildcard && s.eventType != evt.Type {
			continue
		}
		select {
		case s.ch <- evt:
		default:
		}
	}
}

// History returns a copy of the currently retained bounded history.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// Close disposes the bus: further Publish calls are no-ops and all
// subscriber channels are closed. Double-close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return
	}
	b.disposed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
