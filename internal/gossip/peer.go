// Package gossip implements the peer-to-peer anti-entropy layer
// (spec.md §4.10): a bounded peer set, a dedup/TTL message pipeline, and
// a pluggable transport so the same Instance can run over an in-process
// loopback (tests) or a real broker (Kafka).
package gossip

import (
	"math/rand"
	"sync"
)

// Peer is one entry in an instance's peer set (spec.md §4.10).
type Peer struct {
	ID           string
	Endpoint     string
	Active       bool
	FailureCount int
	HealthScore  float64
}

// PeerSet tracks known peers, a single lock guarding both reads and
// writes since the set is small and mutated infrequently relative to
// message traffic.
type PeerSet struct {
	mu         sync.Mutex
	peers      map[string]*Peer
	maxRetries int
}

// NewPeerSet constructs an empty PeerSet. A peer is deactivated once its
// FailureCount reaches maxRetries (spec.md §4.10).
func NewPeerSet(maxRetries int) *PeerSet {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &PeerSet{peers: make(map[string]*Peer), maxRetries: maxRetries}
}

// AddPeer registers or reactivates a peer.
func (s *PeerSet) AddPeer(id, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[id] = &Peer{ID: id, Endpoint: endpoint, Active: true, HealthScore: 1.0}
}

// RemovePeer drops a peer from the set entirely.
func (s *PeerSet) RemovePeer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

// MarkPeerFailed increments a peer's failure count, deactivating it once
// the count reaches maxRetries. A peer marked failed stays inactive
// until externally re-added via AddPeer; there is no automatic revival
// (spec.md §4.10 failure model).
func (s *PeerSet) MarkPeerFailed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return
	}
	p.FailureCount++
	p.HealthScore = 1.0 / float64(1+p.FailureCount)
	if p.FailureCount >= s.maxRetries {
		p.Active = false
	}
}

// Get returns a copy of the peer record for id, if known.
func (s *PeerSet) Get(id string) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// ActivePeers returns a copy of every currently active peer.
func (s *PeerSet) ActivePeers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out
}

// SelectRandomPeers returns up to fanout distinct active peers, skipping
// any whose id is in exclude (spec.md §4.10 select_random_peers /
// receive_message's "not in m.seen-by" rebroadcast rule).
func (s *PeerSet) SelectRandomPeers(fanout int, exclude map[string]bool) []Peer {
	candidates := s.ActivePeers()
	eligible := candidates[:0]
	for _, p := range candidates {
		if exclude == nil || !exclude[p.ID] {
			eligible = append(eligible, p)
		}
	}
	rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	if fanout > len(eligible) {
		fanout = len(eligible)
	}
	out := make([]Peer, fanout)
	copy(out, eligible[:fanout])
	return out
}
