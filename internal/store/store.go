// Package store implements the bi-temporal versioned snapshot store
// (spec.md §4.5): an append-only, per-agent history of canonical quad
// sets, queryable by version, valid-time, or "latest".
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

// ErrTemporalConflict is returned when a write assumes a stale version.
// Recoverable by retrying against the current version.
var ErrTemporalConflict = errors.New("store: temporal conflict")

// ErrNotFound is returned when an agent or snapshot does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDisposed is returned by any operation on a store after Close.
var ErrDisposed = errors.New("store: disposed")

// Snapshot is one immutable version of an agent's canonical graph.
type Snapshot struct {
	AgentID   string
	Version   int
	GraphName string
	Quads     []canonical.Quad
	Meta      map[string]interface{}
	ValidFrom time.Time
	ValidTo   *time.Time // nil means this is the current snapshot
	TxTime    time.Time
	PrevHash  string // hash of the previous snapshot in this agent's chain, "" for version 1
	Hash      string // sha256(canonical(payload) || prevHash), hex-encoded
}

// IsCurrent reports whether this snapshot has not been superseded.
func (s Snapshot) IsCurrent() bool {
	return s.ValidTo == nil
}

// QueryPattern is an AND-filter over quad components; nil fields are
// wildcards (spec.md §4.5 query).
type QueryPattern struct {
	Subject   *canonical.Term
	Predicate *canonical.Term
	Object    *canonical.Term
	Graph     *canonical.Term
}

// PointInTime selects which version of an agent's graph a read targets.
// Exactly one of Version, AsOf, Latest should be set; Latest is the
// zero-value default.
type PointInTime struct {
	Version int
	AsOf    time.Time
	Latest  bool
}

// AgentFilter narrows discover_agents (spec.md §4.5).
type AgentFilter struct {
	NameContains  string
	HasCapability []string
	Framework     string
}

// AgentSummary is one row of a discover_agents result.
type AgentSummary struct {
	AgentID      string
	Name         string
	Framework    string
	Version      int
	Capabilities []string
}

// Stats is the result of get_stats.
type Stats struct {
	TotalAgents    int
	TotalSnapshots int
	TotalQuads     int
}

// Binding is one row of a Select result: variable name to bound term.
type Binding map[string]canonical.Term

// SelectResult is the output of a conjunctive pattern-match query.
type SelectResult struct {
	Variables []string
	Bindings  []Binding
}

// TemporalStore is the bi-temporal snapshot store contract (spec.md §4.5).
// Writers serialize per agent-id; readers see snapshot-consistent views
// because a snapshot, once created, is never mutated.
type TemporalStore interface {
	CreateSnapshot(ctx context.Context, agentID string, quads []canonical.Quad, meta map[string]interface{}) (Snapshot, error)
	GetSnapshot(ctx context.Context, agentID string, at PointInTime) (Snapshot, bool, error)
	GetHistory(ctx context.Context, agentID string) ([]Snapshot, error)
	Query(ctx context.Context, pattern QueryPattern, at *PointInTime) ([]canonical.Quad, error)
	Select(ctx context.Context, patterns []QueryPattern) (SelectResult, error)
	DiscoverAgents(ctx context.Context, filter AgentFilter) ([]AgentSummary, error)
	DeleteAgent(ctx context.Context, agentID string) (bool, error)
	GetStats(ctx context.Context) (Stats, error)
	// VerifyHistory walks an agent's hash chain and reports whether every
	// link holds, stopping at the first broken one (supplemented per DESIGN.md, grounded on
	// the kernel's audit chain verifier).
	VerifyHistory(ctx context.Context, agentID string) (bool, error)
	Close() error
}
