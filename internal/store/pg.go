package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

// PGStore is a Postgres-backed TemporalStore, grounded on
// reasoning-graph/internal/store/store.go's PGStore: plain database/sql
// plus github.com/lib/pq for array parameter binding, one row per
// snapshot, quads serialized as N-Triples text.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an already-open *sql.DB. Schema creation is left to
// migrations outside this package, matching the teacher's convention.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateSnapshot(ctx context.Context, agentID string, quads []canonical.Quad, meta map[string]interface{}) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var prevVersion sql.NullInt64
	var prevHash sql.NullString
	row := tx.QueryRowContext(ctx, `
		SELECT version, hash FROM chrysalis_snapshots
		WHERE agent_id = $1 AND valid_to IS NULL
		FOR UPDATE`, agentID)
	if err := row.Scan(&prevVersion, &prevHash); err != nil && err != sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("store: lock current snapshot: %w", err)
	}

	version := 1
	prev := ""
	if prevVersion.Valid {
		version = int(prevVersion.Int64) + 1
		prev = prevHash.String
		now := time.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE chrysalis_snapshots SET valid_to = $1
			WHERE agent_id = $2 AND version = $3`, now, agentID, int(prevVersion.Int64)); err != nil {
			return Snapshot{}, fmt.Errorf("store: close predecessor: %w", err)
		}
	}

	hash, err := chainHash(agentID, version, agentID, quads, meta, prev)
	if err != nil {
		return Snapshot{}, err
	}

	metaJSON, err := ensureJSON(meta)
	if err != nil {
		return Snapshot{}, err
	}

	now := time.Now()
	lines := make([]string, 0, len(quads))
	for _, q := range quads {
		lines = append(lines, canonical.Serialize([]canonical.Quad{q}))
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chrysalis_snapshots
			(agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9)`,
		agentID, version, agentID, pq.Array(lines), metaJSON, now, now, prev, hash); err != nil {
		return Snapshot{}, fmt.Errorf("store: insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("store: commit: %w", err)
	}

	return Snapshot{
		AgentID:   agentID,
		Version:   version,
		GraphName: agentID,
		Quads:     append([]canonical.Quad{}, quads...),
		Meta:      meta,
		ValidFrom: now,
		TxTime:    now,
		PrevHash:  prev,
		Hash:      hash,
	}, nil
}

func (s *PGStore) GetSnapshot(ctx context.Context, agentID string, at PointInTime) (Snapshot, bool, error) {
	var row *sql.Row
	switch {
	case at.Version > 0:
		row = s.db.QueryRowContext(ctx, `
			SELECT agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash
			FROM chrysalis_snapshots WHERE agent_id = $1 AND version = $2`, agentID, at.Version)
	case !at.AsOf.IsZero():
		row = s.db.QueryRowContext(ctx, `
			SELECT agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash
			FROM chrysalis_snapshots
			WHERE agent_id = $1 AND valid_from <= $2
			ORDER BY valid_from DESC LIMIT 1`, agentID, at.AsOf)
	default:
		row = s.db.QueryRowContext(ctx, `
			SELECT agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash
			FROM chrysalis_snapshots
			WHERE agent_id = $1 AND valid_to IS NULL`, agentID)
	}
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("store: get snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *PGStore) GetHistory(ctx context.Context, agentID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash
		FROM chrysalis_snapshots WHERE agent_id = $1 ORDER BY version ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("store: get history: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshotRows(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan history row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *PGStore) Query(ctx context.Context, pattern QueryPattern, at *PointInTime) ([]canonical.Quad, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (agent_id) agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash
		FROM chrysalis_snapshots
		ORDER BY agent_id, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []canonical.Quad
	for rows.Next() {
		snap, err := scanSnapshotRows(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan query row: %w", err)
		}
		for _, q := range snap.Quads {
			if matchesPattern(q, pattern) {
				out = append(out, q)
			}
		}
	}
	return out, rows.Err()
}

// Select is implemented by delegating to the same pattern-unification
// logic MemoryStore uses, over the results of an unconstrained Query.
func (s *PGStore) Select(ctx context.Context, patterns []QueryPattern) (SelectResult, error) {
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
				if nb, ok := unifyPattern(pat, q, b); ok {
					next = append(next, nb)
				}
			}
		}
		bindings = next
	}
	return SelectResult{Variables: varNames, Bindings: bindings}, nil
}

func (s *PGStore) DiscoverAgents(ctx context.Context, filter AgentFilter) ([]AgentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (agent_id) agent_id, version, graph_name, quads, meta, valid_from, valid_to, tx_time, prev_hash, hash
		FROM chrysalis_snapshots
		ORDER BY agent_id, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: discover agents: %w", err)
	}
	defer rows.Close()

	var out []AgentSummary
	for rows.Next() {
		snap, err := scanSnapshotRows(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan discover row: %w", err)
		}
		name := extractName(snap.Quads)
		framework, _ := snap.Meta["framework"].(string)
		caps := extractCapabilities(snap.Quads)
		if filter.NameContains != "" && !containsFold(name, filter.NameContains) {
			continue
		}
		if filter.Framework != "" && filter.Framework != framework {
			continue
		}
		if !hasAllCapabilities(caps, filter.HasCapability) {
			continue
		}
		out = append(out, AgentSummary{AgentID: snap.AgentID, Name: name, Framework: framework, Version: snap.Version, Capabilities: caps})
	}
	return out, rows.Err()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (s *PGStore) DeleteAgent(ctx context.Context, agentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chrysalis_snapshots WHERE agent_id = $1`, agentID)
	if err != nil {
		return false, fmt.Errorf("store: delete agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PGStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT agent_id), COUNT(*) FROM chrysalis_snapshots`)
	if err := row.Scan(&stats.TotalAgents, &stats.TotalSnapshots); err != nil {
		return Stats{}, fmt.Errorf("store: get stats: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT quads FROM chrysalis_snapshots`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: get stats quads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lines pq.StringArray
		if err := rows.Scan(&lines); err != nil {
			return Stats{}, fmt.Errorf("store: scan quads: %w", err)
		}
		stats.TotalQuads += len(lines)
	}
	return stats, rows.Err()
}

func (s *PGStore) VerifyHistory(ctx context.Context, agentID string) (bool, error) {
	hist, err := s.GetHistory(ctx, agentID)
	if err != nil {
		return false, err
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

func (s *PGStore) Close() error {
	return s.db.Close()
}

// ensureJSON marshals v to JSON bytes, treating nil as an empty object
// (mirrors reasoning-graph/internal/store/store.go's ensureJSON helper).
func ensureJSON(v map[string]interface{}) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row *sql.Row) (Snapshot, error) {
	return scanSnapshotGeneric(row)
}

func scanSnapshotRows(rows *sql.Rows) (Snapshot, error) {
	return scanSnapshotGeneric(rows)
}

func scanSnapshotGeneric(scanner rowScanner) (Snapshot, error) {
	var (
		agentID, graphName, prevHash, hash string
		version                            int
		lines                              pq.StringArray
		metaJSON                           []byte
		validFrom, txTime                  time.Time
		validTo                            sql.NullTime
	)
	if err := scanner.Scan(&agentID, &version, &graphName, &lines, &metaJSON, &validFrom, &validTo, &txTime, &prevHash, &hash); err != nil {
		return Snapshot{}, err
	}
	quads := make([]canonical.Quad, 0, len(lines))
	for _, line := range lines {
		parsed, err := canonical.Parse(line + "\n")
		if err != nil {
			return Snapshot{}, fmt.Errorf("store: parse quad line: %w", err)
		}
		quads = append(quads, parsed...)
	}
	var meta map[string]interface{}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return Snapshot{}, fmt.Errorf("store: unmarshal meta: %w", err)
		}
	}
	snap := Snapshot{
		AgentID:   agentID,
		Version:   version,
		GraphName: graphName,
		Quads:     quads,
		Meta:      meta,
		ValidFrom: validFrom,
		TxTime:    txTime,
		PrevHash:  prevHash,
		Hash:      hash,
	}
	if validTo.Valid {
		snap.ValidTo = &validTo.Time
	}
	return snap, nil
}
