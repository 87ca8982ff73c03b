package adapter

import "strings"

// DefaultFieldWeights is the published, versioned weighting table the
// fidelity scorer uses (Open Question decision, DESIGN.md): core identity
// fields weight 3, capability/tool fields weight 2, peripheral metadata
// weight 1. Matching is by keyword substring against the source path
// rather than exact path, since each adapter names its own native paths
// (e.g. usa's "identity.name" matches "name", while lmos's "title"
// matches no keyword). Unmatched paths default to weight 1.
const FidelityWeightSchemaVersion = "v1"

var DefaultFieldWeights = []struct {
	Keyword string
	Weight  int
}{
	{"name", 3},
	{"role", 3},
	{"goal", 3},
	{"provider", 3},
	{"model", 3},
	{"tool", 2},
	{"capabilit", 2},
	{"action", 2},
	{"memory", 2},
}

func weightFor(path string) int {
	lower := strings.ToLower(path)
	for _, fw := range DefaultFieldWeights {
		if strings.Contains(lower, fw.Keyword) {
			return fw.Weight
		}
	}
	return 1
}

// Score computes the weighted fidelity score of a translation:
// sum(weight(mapped)) / sum(weight(mapped ∪ unmapped ∪ lost))
// (spec.md §3.2 invariant iii). A translation that observed no source
// paths at all scores 1.0 (vacuously perfect fidelity).
func Score(tracker *FieldTracker) float64 {
	mapped := tracker.Mapped()
	unmapped := tracker.Unmapped()
	lost := tracker.Lost()

	var mappedWeight, totalWeight float64
	for _, p := range mapped {
		w := float64(weightFor(p))
		mappedWeight += w
		totalWeight += w
	}
	for _, p := range unmapped {
		totalWeight += float64(weightFor(p))
	}
	for _, p := range lost {
		totalWeight += float64(weightFor(p))
	}

	if totalWeight == 0 {
		return 1.0
	}
	return mappedWeight / totalWeight
}
