package gossip

import "context"

// Transport abstracts how a Message physically reaches a peer: an
// in-process channel for tests, a Kafka topic for real fanout.
type Transport interface {
	Send(ctx context.Context, peer Peer, msg Message) error
	Close() error
}

// LoopbackTransport delivers messages directly to in-process Instances
// registered under a peer id, for deterministic tests without a broker.
type LoopbackTransport struct {
	instances map[string]*Instance
}

// NewLoopbackTransport constructs an empty LoopbackTransport.
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{instances: make(map[string]*Instance)}
}

// RegisterInstance makes inst reachable at peerID by Send.
func (t *LoopbackTransport) RegisterInstance(peerID string, inst *Instance) {
	t.instances[peerID] = inst
}

func (t *LoopbackTransport) Send(ctx context.Context, peer Peer, msg Message) error {
	inst, ok := t.instances[peer.ID]
	if !ok {
		return errPeerUnreachable(peer.ID)
	}
	return inst.ReceiveMessage(ctx, msg)
}

func (t *LoopbackTransport) Close() error { return nil }

var _ Transport = (*LoopbackTransport)(nil)
