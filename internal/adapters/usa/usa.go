// Package usa implements the "Unified Schema for Agents" adapter: a
// config-object-oriented native shape with nested metadata, identity,
// capabilities, and execution trees (spec.md §4.7).
package usa

import (
	"fmt"

	"github.com/chrysalis-dev/morph-core/internal/adapter"
	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

const (
	frameworkTag = "usa"
	adapterName  = "USA Adapter"
	adapterVer   = "1.0.0"
	shadowPath   = "_shadow"
)

// Adapter implements adapter.Adapter for the USA native schema.
type Adapter struct{}

// New returns a USA adapter instance.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) FrameworkTag() string        { return frameworkTag }
func (a *Adapter) Name() string                { return adapterName }
func (a *Adapter) Version() string             { return adapterVer }
func (a *Adapter) ExtensionNamespace() string   { return canonical.ExtensionNamespace(frameworkTag, 1) }
func (a *Adapter) SupportsShadow() bool         { return true }
func (a *Adapter) ShadowAttachmentPath() string { return shadowPath }

// ValidateNative checks the structural minimum: identity.name and
// identity.id are required.
func (a *Adapter) ValidateNative(native map[string]interface{}) adapter.ValidationResult {
	var errs, warns []adapter.ValidationIssue

	identity, _ := native["identity"].(map[string]interface{})
	if identity == nil {
		errs = append(errs, adapter.ValidationIssue{Code: "USA001", Message: "missing identity block", Severity: "error", Path: "identity"})
	} else {
		if s, _ := identity["name"].(string); s == "" {
			errs = append(errs, adapter.ValidationIssue{Code: "USA002", Message: "identity.name is required", Severity: "error", Path: "identity.name"})
		}
		if s, _ := identity["id"].(string); s == "" {
			errs = append(errs, adapter.ValidationIssue{Code: "USA003", Message: "identity.id is required", Severity: "error", Path: "identity.id"})
		}
	}

	execution, _ := native["execution"].(map[string]interface{})
	if execution == nil {
		warns = append(warns, adapter.ValidationIssue{Code: "USA010", Message: "missing execution block, llm config will be absent", Severity: "warning", Path: "execution"})
	}

	return adapter.ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// usaClaimedPaths lists every dotted source path a named mapping below
// already accounts for. ExtractUnclaimedExtensions skips exactly these
// paths, so anything else the caller's native map contains — an LLM
// temperature, a metadata field no one anticipated, a whole new
// top-level block — still gets observed and carried as an extension
// instead of silently disappearing.
var usaClaimedPaths = adapter.ClaimedPaths{
	"framework":              true,
	"identity.id":            true,
	"identity.name":          true,
	"identity.role":          true,
	"identity.goal":          true,
	"execution.llm.provider": true,
	"execution.llm.model":    true,
	"capabilities.tools":     true,
}

// ToCanonical translates a USA native agent to the canonical model.
func (a *Adapter) ToCanonical(native map[string]interface{}) (adapter.CanonicalAgent, error) {
	tracker := adapter.NewFieldTracker()
	var quads []canonical.Quad

	identity, _ := native["identity"].(map[string]interface{})
	if identity == nil {
		return adapter.CanonicalAgent{}, fmt.Errorf("usa: missing identity block")
	}
	id, _ := identity["id"].(string)
	if id == "" {
		return adapter.CanonicalAgent{}, fmt.Errorf("usa: identity.id is required")
	}
	agentURI := canonical.AgentIRI(id)
	subj := canonical.NamedNode(agentURI)
	tracker.MarkMapped("identity.id")

	quads = append(quads, canonical.NewQuad(subj, canonical.RDFType, canonical.TypeAgent))

	name, _ := identity["name"].(string)
	adapter.AddOptionalLiteral(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"name"), name, "", "identity.name")

	role, _ := identity["role"].(string)
	adapter.AddOptionalLiteral(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"role"), role, "", "identity.role")

	goal, _ := identity["goal"].(string)
	adapter.AddOptionalLiteral(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"goal"), goal, "", "identity.goal")

	if execution, ok := native["execution"].(map[string]interface{}); ok {
		if llm, ok := execution["llm"].(map[string]interface{}); ok {
			llmNode := adapter.CreateTypedBlankNode(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"hasLLMConfig"), canonical.TypeLLMConfig, "llm", "execution.llm")
			provider, _ := llm["provider"].(string)
			adapter.AddOptionalLiteral(&quads, tracker, llmNode, canonical.NamedNode(canonical.NSChrysalis+"provider"), provider, "", "execution.llm.provider")
			model, _ := llm["model"].(string)
			adapter.AddOptionalLiteral(&quads, tracker, llmNode, canonical.NamedNode(canonical.NSChrysalis+"model"), model, "", "execution.llm.model")
		}
	}

	if capabilities, ok := native["capabilities"].(map[string]interface{}); ok {
		if tools, ok := capabilities["tools"].([]interface{}); ok {
			names := make([]string, 0, len(tools))
			for _, t := range tools {
				if s, ok := t.(string); ok {
					names = append(names, s)
				}
			}
			adapter.AddLiteralArray(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"hasCapability"), names, "capabilities.tools")
		}
	}

	extensions := adapter.ExtractUnclaimedExtensions(native, usaClaimedPaths, canonical.ExtensionNamespace(frameworkTag, 1), tracker)

	agent := adapter.CanonicalAgent{
		AgentURI:   agentURI,
		Quads:      quads,
		Framework:  frameworkTag,
		Extensions: extensions,
		Metadata: adapter.TranslationMetadata{
			MappedFields:   tracker.Mapped(),
			UnmappedFields: tracker.Unmapped(),
			LostFields:     tracker.Lost(),
			FidelityScore:  adapter.Score(tracker),
		},
	}
	return agent, nil
}

// FromCanonical reconstructs a USA native agent from the canonical model.
func (a *Adapter) FromCanonical(agent adapter.CanonicalAgent) (map[string]interface{}, error) {
	subj := canonical.NamedNode(agent.AgentURI)
	native := map[string]interface{}{
		"identity":     map[string]interface{}{},
		"execution":    map[string]interface{}{},
		"capabilities": map[string]interface{}{},
		"metadata":     map[string]interface{}{},
	}
	identity := native["identity"].(map[string]interface{})
	if prefix := canonical.AgentIRI(""); len(agent.AgentURI) > len(prefix) && agent.AgentURI[:len(prefix)] == prefix {
		identity["id"] = agent.AgentURI[len(prefix):]
	}

	for _, q := range agent.Quads {
		if !q.Subject.Equal(subj) || q.Predicate.Kind != canonical.KindNamedNode {
			continue
		}
		switch q.Predicate.IRI {
		case canonical.NSChrysalis + "name":
			identity["name"] = q.Object.Lexical
		case canonical.NSChrysalis + "role":
			identity["role"] = q.Object.Lexical
		case canonical.NSChrysalis + "goal":
			identity["goal"] = q.Object.Lexical
		case canonical.NSChrysalis + "hasCapability":
			capabilities := native["capabilities"].(map[string]interface{})
			tools, _ := capabilities["tools"].([]interface{})
			capabilities["tools"] = append(tools, q.Object.Lexical)
		case canonical.NSChrysalis + "hasLLMConfig":
			llmNode := q.Object
			llm := map[string]interface{}{}
			for _, inner := range agent.Quads {
				if !inner.Subject.Equal(llmNode) {
					continue
				}
				switch inner.Predicate.IRI {
				case canonical.NSChrysalis + "provider":
					llm["provider"] = inner.Object.Lexical
				case canonical.NSChrysalis + "model":
					llm["model"] = inner.Object.Lexical
				}
			}
			native["execution"].(map[string]interface{})["llm"] = llm
		}
	}

	adapter.RestoreAllExtensions(native, agent.Extensions, canonical.ExtensionNamespace(frameworkTag, 1))

	return native, nil
}

// GetFieldMappings declares this adapter's source-path to
// canonical-predicate correspondence for diagnostics.
func (a *Adapter) GetFieldMappings() []adapter.FieldMapping {
	return []adapter.FieldMapping{
		{SourcePath: "identity.name", CanonicalPredicate: canonical.NSChrysalis + "name", Weight: 3},
		{SourcePath: "identity.role", CanonicalPredicate: canonical.NSChrysalis + "role", Weight: 3},
		{SourcePath: "identity.goal", CanonicalPredicate: canonical.NSChrysalis + "goal", Weight: 3},
		{SourcePath: "execution.llm.provider", CanonicalPredicate: canonical.NSChrysalis + "provider", Weight: 3},
		{SourcePath: "execution.llm.model", CanonicalPredicate: canonical.NSChrysalis + "model", Weight: 3},
		{SourcePath: "capabilities.tools", CanonicalPredicate: canonical.NSChrysalis + "hasCapability", Weight: 2},
		{SourcePath: "metadata.owner", CanonicalPredicate: "", Weight: 1},
	}
}

var _ adapter.Adapter = (*Adapter)(nil)
