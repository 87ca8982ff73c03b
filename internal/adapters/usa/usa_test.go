package usa

import (
	"testing"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

func sampleNative() map[string]interface{} {
	return map[string]interface{}{
		"identity": map[string]interface{}{
			"id":   "agent-1",
			"name": "research-agent",
			"role": "researcher",
			"goal": "find relevant papers",
		},
		"execution": map[string]interface{}{
			"llm": map[string]interface{}{
				"provider": "anthropic",
				"model":    "claude",
			},
		},
		"capabilities": map[string]interface{}{
			"tools": []interface{}{"web_search", "summarize"},
		},
		"metadata": map[string]interface{}{
			"owner": "team-research",
		},
	}
}

func TestValidateNativeRequiresIdentity(t *testing.T) {
	a := New()
	result := a.ValidateNative(map[string]interface{}{})
	if result.Valid {
		t.Fatalf("expected invalid for missing identity")
	}
	if len(result.Errors) == 0 {
		t.Fatalf("expected errors")
	}
}

func TestValidateNativeAcceptsWellFormed(t *testing.T) {
	a := New()
	result := a.ValidateNative(sampleNative())
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %+v", result.Errors)
	}
}

func TestToCanonicalProducesAgentTypeQuad(t *testing.T) {
	a := New()
	agent, err := a.ToCanonical(sampleNative())
	if err != nil {
		t.Fatalf("to_canonical: %v", err)
	}
	if agent.AgentURI == "" {
		t.Fatalf("expected agent URI")
	}
	found := false
	for _, q := range agent.Quads {
		if q.Predicate.Equal(canonical.RDFType) && q.Object.Equal(canonical.TypeAgent) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rdf:type chrysalis:Agent quad")
	}
}

func TestToCanonicalFidelityAboveThreshold(t *testing.T) {
	a := New()
	agent, err := a.ToCanonical(sampleNative())
	if err != nil {
		t.Fatalf("to_canonical: %v", err)
	}
	if agent.Metadata.FidelityScore < 0.9 {
		t.Fatalf("expected fidelity >= 0.9, got %f", agent.Metadata.FidelityScore)
	}
}

func TestRoundTripPreservesMappedFields(t *testing.T) {
	a := New()
	native := sampleNative()
	agent, err := a.ToCanonical(native)
	if err != nil {
		t.Fatalf("to_canonical: %v", err)
	}
	reconstructed, err := a.FromCanonical(agent)
	if err != nil {
		t.Fatalf("from_canonical: %v", err)
	}

	identity := reconstructed["identity"].(map[string]interface{})
	if identity["name"] != "research-agent" {
		t.Fatalf("expected name preserved, got %#v", identity["name"])
	}
	if identity["role"] != "researcher" {
		t.Fatalf("expected role preserved, got %#v", identity["role"])
	}

	metadata := reconstructed["metadata"].(map[string]interface{})
	if metadata["owner"] != "team-research" {
		t.Fatalf("expected owner restored from extension, got %#v", metadata["owner"])
	}
}

func TestRoundTripPreservesUnmappedLLMTemperatureWithZeroLostFields(t *testing.T) {
	a := New()
	native := sampleNative()
	native["execution"].(map[string]interface{})["llm"].(map[string]interface{})["temperature"] = 0.7

	agent, err := a.ToCanonical(native)
	if err != nil {
		t.Fatalf("to_canonical: %v", err)
	}
	if len(agent.Metadata.LostFields) != 0 {
		t.Fatalf("expected zero lost fields, got %v", agent.Metadata.LostFields)
	}

	found := false
	for _, path := range agent.Metadata.UnmappedFields {
		if path == "execution.llm.temperature" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected execution.llm.temperature observed as unmapped, got %v", agent.Metadata.UnmappedFields)
	}

	reconstructed, err := a.FromCanonical(agent)
	if err != nil {
		t.Fatalf("from_canonical: %v", err)
	}
	execution := reconstructed["execution"].(map[string]interface{})
	llm := execution["llm"].(map[string]interface{})
	if llm["temperature"] != 0.7 {
		t.Fatalf("expected temperature restored losslessly, got %#v", llm["temperature"])
	}
}
