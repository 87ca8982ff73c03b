package gossip

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrysalis-dev/morph-core/internal/clock"
	"github.com/chrysalis-dev/morph-core/internal/errkit"
)

// ErrUnknownSchemaVersion is returned when a received message declares a
// schema version this Instance doesn't understand (Open Question
// decision, DESIGN.md): unrecognized versions are dropped and counted,
// never processed.
var ErrUnknownSchemaVersion = errors.New("gossip: unknown schema version")

func errPeerUnreachable(id string) error {
	return errkit.New(errkit.KindConnection, "gossip", "send", fmt.Sprintf("peer %q unreachable", id))
}

// Stats counts dropped/applied/rebroadcast messages for diagnostics.
type Stats struct {
	Applied           int
	DroppedSeen       int
	DroppedTTL        int
	DroppedStale      int
	DroppedBadVersion int
	Rebroadcasts      int
}

// PayloadHandler applies a delivered, newly-seen payload to local state
// (typically an internal/merge.CRDTMerge call). It must be idempotent
// since at-least-once delivery is the norm under gossip.
type PayloadHandler func(payload interface{}, msgClock clock.Clock)

// Config tunes an Instance's gossip parameters (spec.md §6.6).
type Config struct {
	InstanceID    string
	Fanout        int
	MaxRetries    int
	MessageTTL    int
	MaxAge        time.Duration
	SeenCacheSize int
}

// Instance is one participant in the gossip mesh: its own peer set, a
// bounded FIFO seen-message cache for dedup, a monotonically increasing
// round counter, and a logical clock.
type Instance struct {
	cfg       Config
	peers     *PeerSet
	transport Transport
	handler   PayloadHandler

	mu        sync.Mutex
	seenOrder *list.List
	seenIndex map[string]*list.Element
	round     int
	clk       clock.Clock
	stats     Stats
	disposed  bool
}

// NewInstance constructs a gossip Instance bound to transport, with
// handler invoked for every newly-applied message payload.
func NewInstance(cfg Config, transport Transport, handler PayloadHandler) *Instance {
	if cfg.Fanout <= 0 {
		cfg.Fanout = 3
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = 1000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	return &Instance{
		cfg:       cfg,
		peers:     NewPeerSet(cfg.MaxRetries),
		transport: transport,
		handler:   handler,
		seenOrder: list.New(),
		seenIndex: make(map[string]*list.Element),
		clk:       clock.New(cfg.InstanceID),
	}
}

// Peers exposes the underlying peer set for add_peer/remove_peer/
// mark_peer_failed.
func (inst *Instance) Peers() *PeerSet { return inst.peers }

// Stats returns a snapshot of this instance's cumulative counters.
func (inst *Instance) Stats() Stats {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.stats
}

func (inst *Instance) markSeen(id string) {
	if el, ok := inst.seenIndex[id]; ok {
		inst.seenOrder.MoveToFront(el)
		return
	}
	el := inst.seenOrder.PushFront(id)
	inst.seenIndex[id] = el
	if inst.seenOrder.Len() > inst.cfg.SeenCacheSize {
		oldest := inst.seenOrder.Back()
		if oldest != nil {
			inst.seenOrder.Remove(oldest)
			delete(inst.seenIndex, oldest.Value.(string))
		}
	}
}

func (inst *Instance) hasSeen(id string) bool {
	_, ok := inst.seenIndex[id]
	return ok
}

// Broadcast sends msg to up to Fanout active peers not already in its
// SeenBy set, recording local instance as having seen it first.
func (inst *Instance) Broadcast(ctx context.Context, msg Message) {
	inst.mu.Lock()
	inst.markSeen(msg.MessageID)
	inst.mu.Unlock()
	inst.rebroadcast(ctx, msg, inst.cfg.InstanceID)
}

func (inst *Instance) rebroadcast(ctx context.Context, msg Message, seenByID string) {
	next := msg.WithDecrementedTTL(seenByID)
	targets := inst.peers.SelectRandomPeers(inst.cfg.Fanout, next.SeenBy)
	for _, peer := range targets {
		if err := inst.transport.Send(ctx, peer, next); err != nil {
			inst.peers.MarkPeerFailed(peer.ID)
			continue
		}
		inst.mu.Lock()
		inst.stats.Rebroadcasts++
		inst.mu.Unlock()
	}
}

// ReceiveMessage implements spec.md §4.10's receive_message: drop if
// the message id was already seen, ttl is zero, age exceeds max, or the
// schema version is unrecognized. Otherwise mark seen, apply the
// payload via the handler, update the local clock, and rebroadcast with
// a decremented ttl to peers not already in seen-by.
func (inst *Instance) ReceiveMessage(ctx context.Context, msg Message) error {
	inst.mu.Lock()
	if inst.disposed {
		inst.mu.Unlock()
		return errkit.New(errkit.KindDisposed, "gossip", "receive_message", "instance has been closed")
	}
	if msg.SchemaVersion != SchemaVersion {
		inst.stats.DroppedBadVersion++
		inst.mu.Unlock()
		return ErrUnknownSchemaVersion
	}
	if inst.hasSeen(msg.MessageID) {
		inst.stats.DroppedSeen++
		inst.mu.Unlock()
		return nil
	}
	if msg.TTL <= 0 {
		inst.stats.DroppedTTL++
		inst.mu.Unlock()
		return nil
	}
	if inst.cfg.MaxAge > 0 && !msg.CreatedAt.IsZero() && time.Since(msg.CreatedAt) > inst.cfg.MaxAge {
		inst.stats.DroppedStale++
		inst.mu.Unlock()
		return nil
	}

	inst.markSeen(msg.MessageID)
	inst.clk = clock.Update(inst.clk, msg.Clock)
	inst.stats.Applied++
	inst.mu.Unlock()

	if inst.handler != nil {
		inst.handler(msg.Payload, msg.Clock)
	}

	inst.rebroadcast(ctx, msg, inst.cfg.InstanceID)
	return nil
}

// Close disposes the instance; double-close is a no-op.
func (inst *Instance) Close() error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.disposed = true
	return nil
}
