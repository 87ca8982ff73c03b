package adapter

import (
	"testing"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

func TestAddQuadWithTrackingMarksMapped(t *testing.T) {
	var quads []canonical.Quad
	tr := NewFieldTracker()
	subj := canonical.NamedNode("https://chrysalis.dev/agent/a1")
	pred := canonical.NamedNode(canonical.NSChrysalis + "name")

	AddQuadWithTracking(&quads, tr, subj, pred, canonical.Literal("agent-one", ""), "name")

	if len(quads) != 1 {
		t.Fatalf("expected 1 quad, got %d", len(quads))
	}
	if len(tr.Mapped()) != 1 {
		t.Fatalf("expected name marked mapped")
	}
}

func TestAddOptionalLiteralSkipsEmpty(t *testing.T) {
	var quads []canonical.Quad
	tr := NewFieldTracker()
	subj := canonical.NamedNode("https://chrysalis.dev/agent/a1")
	pred := canonical.NamedNode(canonical.NSChrysalis + "description")

	AddOptionalLiteral(&quads, tr, subj, pred, "", "", "description")
	if len(quads) != 0 {
		t.Fatalf("expected no quad for empty value")
	}

	AddOptionalLiteral(&quads, tr, subj, pred, "a research agent", "", "description")
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad for non-empty value")
	}
}

func TestCreateTypedBlankNodeLinksAndTypes(t *testing.T) {
	var quads []canonical.Quad
	tr := NewFieldTracker()
	parent := canonical.NamedNode("https://chrysalis.dev/agent/a1")

	node := CreateTypedBlankNode(&quads, tr, parent, canonical.NamedNode(canonical.NSChrysalis+"hasTool"), canonical.TypeTool, "tool", "tools.0")

	if node.Kind != canonical.KindBlankNode {
		t.Fatalf("expected a blank node")
	}
	if len(quads) != 2 {
		t.Fatalf("expected link + type quads, got %d", len(quads))
	}
	if !quads[1].Object.Equal(canonical.TypeTool) {
		t.Fatalf("expected the second quad to type the blank node")
	}
}

func TestAddLiteralArrayRecordsSourcePathOnce(t *testing.T) {
	var quads []canonical.Quad
	tr := NewFieldTracker()
	subj := canonical.NamedNode("https://chrysalis.dev/agent/a1")
	pred := canonical.NamedNode(canonical.NSChrysalis + "hasCapability")

	AddLiteralArray(&quads, tr, subj, pred, []string{"search", "summarize", "code"}, "capabilities")

	if len(quads) != 3 {
		t.Fatalf("expected 3 quads, got %d", len(quads))
	}
	if len(tr.Mapped()) != 1 {
		t.Fatalf("expected capabilities recorded exactly once, got %v", tr.Mapped())
	}
}

func TestAddJSONLiteralNilSkipped(t *testing.T) {
	var quads []canonical.Quad
	tr := NewFieldTracker()
	subj := canonical.NamedNode("https://chrysalis.dev/agent/a1")
	pred := canonical.NamedNode(canonical.NSChrysalis + "rawConfig")

	if err := AddJSONLiteral(&quads, tr, subj, pred, nil, "raw_config"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quads) != 0 {
		t.Fatalf("expected no quad for nil value")
	}

	if err := AddJSONLiteral(&quads, tr, subj, pred, map[string]interface{}{"b": 1, "a": 2}, "raw_config"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("expected 1 quad")
	}
}

func TestRestoreExtensionFirstMatchJSONThenRaw(t *testing.T) {
	exts := []ExtensionProperty{
		{Namespace: "ns", Property: "p1", Value: `{"x":1}`, SourcePath: "a.b"},
		{Namespace: "ns", Property: "p2", Value: "plain-string", SourcePath: "a.c"},
	}
	got := RestoreExtension(exts, "ns", "p1", nil)
	m, ok := got.(map[string]interface{})
	if !ok || m["x"].(float64) != 1 {
		t.Fatalf("expected JSON-decoded map, got %#v", got)
	}

	got2 := RestoreExtension(exts, "ns", "p2", nil)
	if got2 != "plain-string" {
		t.Fatalf("expected raw string fallback, got %#v", got2)
	}

	got3 := RestoreExtension(exts, "ns", "missing", "default")
	if got3 != "default" {
		t.Fatalf("expected default on no match, got %#v", got3)
	}
}

func TestRestoreExtensionsBatchCreatesIntermediateObjects(t *testing.T) {
	exts := []ExtensionProperty{
		{Namespace: "usa", Property: "owner", Value: "team-infra", SourcePath: "metadata.custom.owner"},
	}
	target := map[string]interface{}{}
	RestoreExtensionsBatch(target, exts, []RestoreTarget{
		{Path: "metadata.custom.owner", Namespace: "usa", Property: "owner"},
	})

	metadata, ok := target["metadata"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected metadata map created")
	}
	custom, ok := metadata["custom"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected custom map created")
	}
	if custom["owner"] != "team-infra" {
		t.Fatalf("expected owner restored, got %#v", custom["owner"])
	}
}

func TestExtractUnclaimedExtensionsSkipsOnlyClaimedPaths(t *testing.T) {
	tr := NewFieldTracker()
	native := map[string]interface{}{
		"identity": map[string]interface{}{
			"id":   "agent-1",
			"name": "research-agent",
		},
		"execution": map[string]interface{}{
			"llm": map[string]interface{}{
				"provider":    "anthropic",
				"temperature": 0.7,
			},
		},
	}
	claimed := ClaimedPaths{
		"identity.id":            true,
		"identity.name":          true,
		"execution.llm.provider": true,
	}

	exts := ExtractUnclaimedExtensions(native, claimed, "ns", tr)

	if len(exts) != 1 {
		t.Fatalf("expected exactly 1 unclaimed leaf, got %d: %+v", len(exts), exts)
	}
	if exts[0].SourcePath != "execution.llm.temperature" {
		t.Fatalf("expected execution.llm.temperature captured, got %q", exts[0].SourcePath)
	}
	if exts[0].Value != 0.7 {
		t.Fatalf("expected value preserved, got %#v", exts[0].Value)
	}

	found := false
	for _, p := range tr.Unmapped() {
		if p == "execution.llm.temperature" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tracker to mark execution.llm.temperature unmapped, got %v", tr.Unmapped())
	}
}

func TestExtractUnclaimedExtensionsSkipsEmptyLeaves(t *testing.T) {
	tr := NewFieldTracker()
	native := map[string]interface{}{
		"metadata": map[string]interface{}{
			"owner": "",
			"notes": nil,
		},
	}
	exts := ExtractUnclaimedExtensions(native, ClaimedPaths{}, "ns", tr)
	if len(exts) != 0 {
		t.Fatalf("expected empty-valued leaves skipped, got %+v", exts)
	}
}

func TestRestoreAllExtensionsOnlyRestoresMatchingNamespace(t *testing.T) {
	exts := []ExtensionProperty{
		{Namespace: "usa", Property: "execution.llm.temperature", Value: 0.7, SourcePath: "execution.llm.temperature"},
		{Namespace: "lmos", Property: "forms", Value: "ignored", SourcePath: "forms"},
	}
	target := map[string]interface{}{
		"execution": map[string]interface{}{"llm": map[string]interface{}{"provider": "anthropic"}},
	}
	RestoreAllExtensions(target, exts, "usa")

	if _, ok := target["forms"]; ok {
		t.Fatalf("expected lmos-namespaced extension not restored into usa target")
	}
	llm := target["execution"].(map[string]interface{})["llm"].(map[string]interface{})
	if llm["temperature"] != 0.7 {
		t.Fatalf("expected temperature restored, got %#v", llm["temperature"])
	}
}

func TestRestoreExtensionsBatchIdempotent(t *testing.T) {
	exts := []ExtensionProperty{
		{Namespace: "usa", Property: "owner", Value: "team-infra", SourcePath: "metadata.owner"},
	}
	target := map[string]interface{}{}
	targets := []RestoreTarget{{Path: "metadata.owner", Namespace: "usa", Property: "owner"}}

	RestoreExtensionsBatch(target, exts, targets)
	RestoreExtensionsBatch(target, exts, targets)

	metadata := target["metadata"].(map[string]interface{})
	if metadata["owner"] != "team-infra" {
		t.Fatalf("expected stable result after repeat application")
	}
}
