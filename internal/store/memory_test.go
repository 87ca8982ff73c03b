package store

import (
	"context"
	"testing"
	"time"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

func agentQuads(agentID, name string) []canonical.Quad {
	iri := canonical.NamedNode(canonical.AgentIRI(agentID))
	return []canonical.Quad{
		canonical.NewQuad(iri, canonical.RDFType, canonical.TypeAgent),
		canonical.NewQuad(iri, canonical.NamedNode(canonical.NSChrysalis+"name"), canonical.Literal(name, "")),
	}
}

func TestCreateSnapshotAssignsIncreasingVersions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	snap1, err := s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap1.Version != 1 {
		t.Fatalf("expected version 1, got %d", snap1.Version)
	}

	snap2, err := s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one-renamed"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap2.Version != 2 {
		t.Fatalf("expected version 2, got %d", snap2.Version)
	}
	if snap2.PrevHash != snap1.Hash {
		t.Fatalf("expected chain link to previous hash")
	}
}

func TestGetSnapshotExactlyOneCurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "v1"), nil)
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "v2"), nil)

	hist, err := s.GetHistory(ctx, "a1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	currentCount := 0
	for _, snap := range hist {
		if snap.IsCurrent() {
			currentCount++
		}
	}
	if currentCount != 1 {
		t.Fatalf("expected exactly 1 current snapshot, got %d", currentCount)
	}
	if hist[0].Version >= hist[1].Version {
		t.Fatalf("expected strictly increasing versions")
	}
}

func TestGetSnapshotByVersionAndLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "v1"), nil)
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "v2"), nil)

	byVersion, ok, err := s.GetSnapshot(ctx, "a1", PointInTime{Version: 1})
	if err != nil || !ok {
		t.Fatalf("expected version 1 found, err=%v ok=%v", err, ok)
	}
	if byVersion.Version != 1 {
		t.Fatalf("expected version 1, got %d", byVersion.Version)
	}

	latest, ok, err := s.GetSnapshot(ctx, "a1", PointInTime{Latest: true})
	if err != nil || !ok {
		t.Fatalf("expected latest found")
	}
	if latest.Version != 2 {
		t.Fatalf("expected latest version 2, got %d", latest.Version)
	}
}

func TestGetSnapshotAsOf(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "v1"), nil)
	mid := time.Now()
	time.Sleep(2 * time.Millisecond)
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "v2"), nil)

	snap, ok, err := s.GetSnapshot(ctx, "a1", PointInTime{AsOf: mid})
	if err != nil || !ok {
		t.Fatalf("expected a snapshot as-of mid, err=%v ok=%v", err, ok)
	}
	if snap.Version != 1 {
		t.Fatalf("expected version 1 as-of mid, got %d", snap.Version)
	}
}

func TestGetSnapshotAbsenceIsExplicit(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.GetSnapshot(context.Background(), "nonexistent", PointInTime{Latest: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected absence, not found")
	}
}

func TestQueryANDsOverComponents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one"), nil)

	pred := canonical.NamedNode(canonical.NSChrysalis + "name")
	quads, err := s.Query(ctx, QueryPattern{Predicate: &pred}, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
}

func TestDiscoverAgentsFiltersByNameAndFramework(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "research-agent"), map[string]interface{}{"framework": "usa"})
	s.CreateSnapshot(ctx, "a2", agentQuads("a2", "support-agent"), map[string]interface{}{"framework": "lmos"})

	found, err := s.DiscoverAgents(ctx, AgentFilter{NameContains: "research"})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 1 || found[0].AgentID != "a1" {
		t.Fatalf("expected only a1, got %+v", found)
	}

	found, err = s.DiscoverAgents(ctx, AgentFilter{Framework: "lmos"})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 1 || found[0].AgentID != "a2" {
		t.Fatalf("expected only a2, got %+v", found)
	}
}

func TestDeleteAgent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one"), nil)

	deleted, err := s.DeleteAgent(ctx, "a1")
	if err != nil || !deleted {
		t.Fatalf("expected delete success, err=%v deleted=%v", err, deleted)
	}
	deleted, err = s.DeleteAgent(ctx, "a1")
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false")
	}
}

func TestGetStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one"), nil)
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one-v2"), nil)
	s.CreateSnapshot(ctx, "a2", agentQuads("a2", "agent-two"), nil)

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAgents != 2 {
		t.Fatalf("expected 2 agents, got %d", stats.TotalAgents)
	}
	if stats.TotalSnapshots != 3 {
		t.Fatalf("expected 3 snapshots, got %d", stats.TotalSnapshots)
	}
}

func TestVerifyHistoryDetectsTamper(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one"), nil)
	s.CreateSnapshot(ctx, "a1", agentQuads("a1", "agent-one-v2"), nil)

	ok, err := s.VerifyHistory(ctx, "a1")
	if err != nil || !ok {
		t.Fatalf("expected chain intact, err=%v ok=%v", err, ok)
	}

	s.mu.Lock()
	hist := s.history["a1"]
	hist[0].Hash = "tampered"
	s.mu.Unlock()

	ok, err = s.VerifyHistory(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected tamper to be detected")
	}
}

func TestDisposalIsUseAfterDisposedError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("double close should be a no-op, got %v", err)
	}
	if _, err := s.CreateSnapshot(ctx, "a1", nil, nil); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed, got %v", err)
	}
}
