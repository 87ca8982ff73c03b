// Package merge implements the distributed state layer's convergence
// primitives (spec.md §4.11): CRDT union across replica state and a
// Byzantine-tolerant vote aggregator for values gossip delivers from
// multiple, possibly adversarial, peers.
package merge

import (
	"math"
	"sort"

	"github.com/chrysalis-dev/morph-core/internal/crdt"
)

// ReplicaState bundles the CRDT primitives one agent's distributed state
// is built from: grow-only provenance tags, an observed-remove skill set,
// and a last-writer-wins map of scalar fields.
type ReplicaState struct {
	Provenance *crdt.GSet
	Skills     *crdt.ORSet
	Fields     *crdt.LWWMap
}

// CRDTMerge unions local and remote componentwise. Each component's own
// Merge is commutative/associative/idempotent, so the composite state is
// too: applying the same remote delta twice, or in either order relative
// to a concurrent local update, converges to the same result.
func CRDTMerge(local, remote ReplicaState) ReplicaState {
	merged := ReplicaState{
		Provenance: crdt.NewGSet(),
		Skills:     crdt.NewORSet(),
		Fields:     crdt.NewLWWMap(),
	}
	if local.Provenance != nil {
		merged.Provenance = local.Provenance
	}
	if remote.Provenance != nil {
		merged.Provenance = merged.Provenance.Merge(remote.Provenance)
	}
	if local.Skills != nil {
		merged.Skills = local.Skills
	}
	if remote.Skills != nil {
		merged.Skills = merged.Skills.Merge(remote.Skills)
	}
	if local.Fields != nil {
		merged.Fields = local.Fields
	}
	if remote.Fields != nil {
		merged.Fields = merged.Fields.Merge(remote.Fields)
	}
	return merged
}

// ValidationResult is the outcome of byzantine_validate (spec.md §4.11).
type ValidationResult struct {
	Mean           float64
	TrimmedMean    float64
	Median         float64
	AgreementCount int
	ThresholdMet   bool
}

// ByzantineValidate aggregates votes cast by N peers on the same item,
// tolerating up to floor(N/3) adversarial outliers. epsilon is the
// absolute distance from the trimmed mean within which a vote counts as
// in agreement; callers pick it to match the precision the voted-on
// quantity (e.g. a fidelity score) is meaningful at.
func ByzantineValidate(votes []float64, epsilon float64) ValidationResult {
	n := len(votes)
	if n == 0 {
		return ValidationResult{}
	}

	sorted := make([]float64, n)
	copy(sorted, votes)
	sort.Float64s(sorted)

	mean := sum(sorted) / float64(n)
	median := medianOf(sorted)

	trim := n / 3
	inner := sorted
	if 2*trim < n {
		inner = sorted[trim : n-trim]
	}
	trimmedMean := mean
	if len(inner) > 0 {
		trimmedMean = sum(inner) / float64(len(inner))
	}

	agreement := 0
	for _, v := range votes {
		if math.Abs(v-trimmedMean) <= epsilon {
			agreement++
		}
	}

	return ValidationResult{
		Mean:           mean,
		TrimmedMean:    trimmedMean,
		Median:         median,
		AgreementCount: agreement,
		ThresholdMet:   float64(agreement) > (2.0/3.0)*float64(n),
	}
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
