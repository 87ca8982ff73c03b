package gossip

import (
	"time"

	"github.com/chrysalis-dev/morph-core/internal/clock"
)

// SchemaVersion is the gossip wire format version this Instance
// understands. Messages declaring any other version are rejected
// outright (Open Question decision, DESIGN.md).
const SchemaVersion = "v1"

// Message is one gossip payload in flight (spec.md §4.10). It carries a
// Lamport + vector clock so the merge engine can sequence concurrent
// deliveries causally.
type Message struct {
	MessageID     string
	SchemaVersion string
	TTL           int
	CreatedAt     time.Time
	Clock         clock.Clock
	SeenBy        map[string]bool
	Payload       interface{}
}

// WithDecrementedTTL returns a copy of m with TTL reduced by one and
// sender recorded in SeenBy, for the re-broadcast step of
// receive_message (spec.md §4.10).
func (m Message) WithDecrementedTTL(seenByID string) Message {
	cp := m
	cp.TTL = m.TTL - 1
	cp.SeenBy = make(map[string]bool, len(m.SeenBy)+1)
	for k, v := range m.SeenBy {
		cp.SeenBy[k] = v
	}
	cp.SeenBy[seenByID] = true
	return cp
}
