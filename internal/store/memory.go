package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

// MemoryStore is an in-process TemporalStore, grounded on
// reasoning-graph/internal/testutil/memorystore.go's in-memory test
// double. Useful for tests and for the orchestrator's own cache warm-up.
type MemoryStore struct {
	mu       sync.Mutex
	writeMus map[string]*sync.Mutex // per-agent-id exclusive writer lock
	history  map[string][]Snapshot
	disposed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		writeMus: make(map[string]*sync.Mutex),
		history:  make(map[string][]Snapshot),
	}
}

func (s *MemoryStore) writerLock(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.writeMus[agentID]
	if !ok {
		m = &sync.Mutex{}
		s.writeMus[agentID] = m
	}
	return m
}

func (s *MemoryStore) CreateSnapshot(ctx context.Context, agentID string, quads []canonical.Quad, meta map[string]interface{}) (Snapshot, error) {
	wl := s.writerLock(agentID)
	wl.Lock()
	defer wl.Unlock()

	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return Snapshot{}, ErrDisposed
	}

	s.mu.Lock()
	existing := s.history[agentID]
	s.mu.Unlock()

	now := time.Now()
	version := 1
	prevHash := ""
	if len(existing) > 0 {
		version = existing[len(existing)-1].Version + 1
		prevHash = existing[len(existing)-1].Hash
	}

	hash, err := chainHash(agentID, version, agentID, quads, meta, prevHash)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		AgentID:   agentID,
		Version:   version,
		GraphName: agentID,
		Quads:     append([]canonical.Quad{}, quads...),
		Meta:      meta,
		ValidFrom: now,
		TxTime:    now,
		PrevHash:  prevHash,
		Hash:      hash,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(existing) > 0 {
		last := existing[len(existing)-1]
		last.ValidTo = &now
		existing[len(existing)-1] = last
	}
	s.history[agentID] = append(existing, snap)
	return snap, nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, agentID string, at PointInTime) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return Snapshot{}, false, ErrDisposed
	}
	hist := s.history[agentID]
	if len(hist) == 0 {
		return Snapshot{}, false, nil
	}

	switch {
	case at.Version > 0:
		for _, snap := range hist {
			if snap.Version == at.Version {
				return snap, true, nil
			}
		}
		return Snapshot{}, false, nil
	case !at.AsOf.IsZero():
		var found Snapshot
		ok := false
		for _, snap := range hist {
			if !snap.ValidFrom.After(at.AsOf) {
				found = snap
				ok = true
			}
		}
		return found, ok, nil
	default:
		return hist[len(hist)-1], true, nil
	}
}

func (s *MemoryStore) GetHistory(ctx context.Context, agentID string) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}
	hist := s.history[agentID]
	out := make([]Snapshot, len(hist))
	copy(out, hist)
	return out, nil
}

func (s *MemoryStore) Query(ctx context.Context, pattern QueryPattern, at *PointInTime) ([]canonical.Quad, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrDisposed
	}
	agentIDs := make([]string, 0, len(s.history))
	for id := range s.history {
		agentIDs = append(agentIDs, id)
	}
	s.mu.Unlock()
	sort.Strings(agentIDs)

	pit := PointInTime{Latest: true}
	if at != nil {
		pit = *at
	}

	var out []canonical.Quad
	for _, id := range agentIDs {
		snap, ok, err := s.GetSnapshot(ctx, id, pit)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, q := range snap.Quads {
			if matchesPattern(q, pattern) {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func matchesPattern(q canonical.Quad, p QueryPattern) bool {
	if p.Subject != nil && !q.Subject.Equal(*p.Subject) {
		return false
	}
	if p.Predicate != nil && !q.Predicate.Equal(*p.Predicate) {
		return false
	}
	if p.Object != nil && !q.Object.Equal(*p.Object) {
		return false
	}
	if p.Graph != nil && !q.Graph.Equal(*p.Graph) {
		return false
	}
	return true
}

// Select evaluates a conjunction of patterns, propagating variable
// bindings across patterns via shared blank-node ids used as variable
// names (spec.md §4.5: "joins by shared variable names").
func (s *MemoryStore) Select(ctx context.Context, patterns []QueryPattern) (SelectResult, error) {
	if len(patterns) == 0 {
		return SelectResult{}, nil
	}
	allQuads, err := s.Query(ctx, QueryPattern{}, nil)
	if err != nil {
		return SelectResult{}, err
	}

	varNames := collectVariables(patterns)
	bindings := []Binding{{}}
	for _, pat := range patterns {
		var next []Binding
		for _, b := range bindings {
			for _, q := range allQuads {
				nb, ok := unifyPattern(pat, q, b)
				if ok {
					next = append(next, nb)
				}
			}
		}
		bindings = next
	}
	return SelectResult{Variables: varNames, Bindings: bindings}, nil
}

func collectVariables(patterns []QueryPattern) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(t *canonical.Term) {
		if t != nil && t.Kind == canonical.KindBlankNode {
			if _, ok := seen[t.BlankID]; !ok {
				seen[t.BlankID] = struct{}{}
				out = append(out, t.BlankID)
			}
		}
	}
	for _, p := range patterns {
		add(p.Subject)
		add(p.Predicate)
		add(p.Object)
		add(p.Graph)
	}
	sort.Strings(out)
	return out
}

func unifyPattern(pat QueryPattern, q canonical.Quad, b Binding) (Binding, bool) {
	nb := make(Binding, len(b))
	for k, v := range b {
		nb[k] = v
	}
	if !unifyTerm(pat.Subject, q.Subject, nb) {
		return nil, false
	}
	if !unifyTerm(pat.Predicate, q.Predicate, nb) {
		return nil, false
	}
	if !unifyTerm(pat.Object, q.Object, nb) {
		return nil, false
	}
	if !unifyTerm(pat.Graph, q.Graph, nb) {
		return nil, false
	}
	return nb, true
}

func unifyTerm(pat *canonical.Term, actual canonical.Term, b Binding) bool {
	if pat == nil {
		return true
	}
	if pat.Kind == canonical.KindBlankNode {
		if bound, ok := b[pat.BlankID]; ok {
			return bound.Equal(actual)
		}
		b[pat.BlankID] = actual
		return true
	}
	return pat.Equal(actual)
}

func (s *MemoryStore) DiscoverAgents(ctx context.Context, filter AgentFilter) ([]AgentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}
	var out []AgentSummary
	for agentID, hist := range s.history {
		if len(hist) == 0 {
			continue
		}
		latest := hist[len(hist)-1]
		name := extractName(latest.Quads)
		framework, _ := latest.Meta["framework"].(string)
		caps := extractCapabilities(latest.Quads)

		if filter.NameContains != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(filter.NameContains)) {
			continue
		}
		if filter.Framework != "" && filter.Framework != framework {
			continue
		}
		if !hasAllCapabilities(caps, filter.HasCapability) {
			continue
		}
		out = append(out, AgentSummary{
			AgentID:      agentID,
			Name:         name,
			Framework:    framework,
			Version:      latest.Version,
			Capabilities: caps,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func extractName(quads []canonical.Quad) string {
	for _, q := range quads {
		if q.Predicate.Kind == canonical.KindNamedNode && strings.HasSuffix(q.Predicate.IRI, "#name") && q.Object.Kind == canonical.KindLiteral {
			return q.Object.Lexical
		}
	}
	return ""
}

func extractCapabilities(quads []canonical.Quad) []string {
	var caps []string
	for _, q := range quads {
		if q.Predicate.Kind == canonical.KindNamedNode && strings.HasSuffix(q.Predicate.IRI, "#hasCapability") && q.Object.Kind == canonical.KindLiteral {
			caps = append(caps, q.Object.Lexical)
		}
	}
	sort.Strings(caps)
	return caps
}

func hasAllCapabilities(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func (s *MemoryStore) DeleteAgent(ctx context.Context, agentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false, ErrDisposed
	}
	_, ok := s.history[agentID]
	delete(s.history, agentID)
	delete(s.writeMus, agentID)
	return ok, nil
}

func (s *MemoryStore) GetStats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return Stats{}, ErrDisposed
	}
	stats := Stats{TotalAgents: len(s.history)}
	for _, hist := range s.history {
		stats.TotalSnapshots += len(hist)
		for _, snap := range hist {
			stats.TotalQuads += len(snap.Quads)
		}
	}
	return stats, nil
}

func (s *MemoryStore) VerifyHistory(ctx context.Context, agentID string) (bool, error) {
	s.mu.Lock()
	hist := append([]Snapshot{}, s.history[agentID]...)
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return false, ErrDisposed
	}
	prevHash := ""
	for _, snap := range hist {
		want, err := chainHash(snap.AgentID, snap.Version, snap.GraphName, snap.Quads, snap.Meta, prevHash)
		if err != nil {
			return false, err
		}
		if want != snap.Hash {
			return false, nil
		}
		prevHash = snap.Hash
	}
	return true, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	return nil
}
