package store

import (
	"encoding/hex"
	"sort"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
	"github.com/chrysalis-dev/morph-core/internal/canonicaljson"
	"github.com/chrysalis-dev/morph-core/internal/crypto"
)

// snapshotPayload is the deterministic, hashable projection of a snapshot:
// quads sorted by their N-Triples line so the hash never depends on
// insertion order, mirroring the reasoning-graph service's
// canonicalizeSnapshot discipline of sorting before hashing.
type snapshotPayload struct {
	AgentID   string                 `json:"agent_id"`
	Version   int                    `json:"version"`
	GraphName string                 `json:"graph_name"`
	Quads     []string               `json:"quads"`
	Meta      map[string]interface{} `json:"meta"`
}

func canonicalizePayload(agentID string, version int, graphName string, quads []canonical.Quad, meta map[string]interface{}) ([]byte, error) {
	lines := make([]string, 0, len(quads))
	for _, q := range quads {
		lines = append(lines, canonical.Serialize([]canonical.Quad{q}))
	}
	sort.Strings(lines)
	payload := snapshotPayload{
		AgentID:   agentID,
		Version:   version,
		GraphName: graphName,
		Quads:     lines,
		Meta:      meta,
	}
	return canonicaljson.Marshal(payload)
}

// chainHash computes hash = sha256(canonical(payload) || prevHash), the
// same construction the kernel's audit chain uses (chain_verifer.go).
func chainHash(agentID string, version int, graphName string, quads []canonical.Quad, meta map[string]interface{}, prevHash string) (string, error) {
	canon, err := canonicalizePayload(agentID, version, graphName, quads, meta)
	if err != nil {
		return "", err
	}
	buf := append(append([]byte{}, canon...), []byte(prevHash)...)
	sum := crypto.Hash(buf)
	return hex.EncodeToString(sum[:]), nil
}
