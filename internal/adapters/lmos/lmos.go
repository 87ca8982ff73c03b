// Package lmos implements the adapter for a JSON-LD-flavored "Thing"
// native shape: a typed Thing carrying actions, forms, and
// securityDefinitions (spec.md §4.7), modeled after Web of Things
// Thing Descriptions.
package lmos

import (
	"fmt"

	"github.com/chrysalis-dev/morph-core/internal/adapter"
	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

const (
	frameworkTag = "lmos"
	adapterName  = "LMOS Adapter"
	adapterVer   = "1.0.0"
	shadowPath   = "_shadow"
)

// Adapter implements adapter.Adapter for the LMOS Thing native schema.
type Adapter struct{}

// New returns an LMOS adapter instance.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) FrameworkTag() string        { return frameworkTag }
func (a *Adapter) Name() string                { return adapterName }
func (a *Adapter) Version() string             { return adapterVer }
func (a *Adapter) ExtensionNamespace() string   { return canonical.ExtensionNamespace(frameworkTag, 1) }
func (a *Adapter) SupportsShadow() bool         { return true }
func (a *Adapter) ShadowAttachmentPath() string { return shadowPath }

// ValidateNative requires "id" and "title" at the Thing root.
func (a *Adapter) ValidateNative(native map[string]interface{}) adapter.ValidationResult {
	var errs, warns []adapter.ValidationIssue

	if s, _ := native["id"].(string); s == "" {
		errs = append(errs, adapter.ValidationIssue{Code: "LMOS001", Message: "id is required", Severity: "error", Path: "id"})
	}
	if s, _ := native["title"].(string); s == "" {
		errs = append(errs, adapter.ValidationIssue{Code: "LMOS002", Message: "title is required", Severity: "error", Path: "title"})
	}
	if _, ok := native["actions"].(map[string]interface{}); !ok {
		warns = append(warns, adapter.ValidationIssue{Code: "LMOS010", Message: "no actions declared", Severity: "warning", Path: "actions"})
	}

	return adapter.ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// lmosClaimedPaths lists the dotted source paths the named mappings
// below already account for. Deliberately absent: "actions" itself —
// only the top-level action names are mapped (as capabilities), so each
// action's nested definition (forms, input/output schemas, ...) still
// falls through to the generic walk and is carried as an extension
// instead of being dropped, the way the whole-value securityDefinitions
// and forms extensions used to be hand-enumerated here.
var lmosClaimedPaths = adapter.ClaimedPaths{
	"framework":   true,
	"id":          true,
	"title":       true,
	"description": true,
}

// ToCanonical translates an LMOS Thing to the canonical model. "title"
// maps to chrysalis:name (a cross-framework semantic equivalence with
// usa's identity.name, per spec.md §4.7), "description" maps to
// chrysalis:goal, and each action name becomes a chrysalis:hasCapability
// literal.
func (a *Adapter) ToCanonical(native map[string]interface{}) (adapter.CanonicalAgent, error) {
	tracker := adapter.NewFieldTracker()
	var quads []canonical.Quad

	id, _ := native["id"].(string)
	if id == "" {
		return adapter.CanonicalAgent{}, fmt.Errorf("lmos: id is required")
	}
	agentURI := canonical.AgentIRI(id)
	subj := canonical.NamedNode(agentURI)
	quads = append(quads, canonical.NewQuad(subj, canonical.RDFType, canonical.TypeAgent))
	tracker.MarkMapped("id")

	title, _ := native["title"].(string)
	adapter.AddOptionalLiteral(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"name"), title, "", "title")

	description, _ := native["description"].(string)
	adapter.AddOptionalLiteral(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"goal"), description, "", "description")

	if actions, ok := native["actions"].(map[string]interface{}); ok {
		names := make([]string, 0, len(actions))
		for actionName := range actions {
			names = append(names, actionName)
		}
		adapter.AddLiteralArray(&quads, tracker, subj, canonical.NamedNode(canonical.NSChrysalis+"hasCapability"), names, "actions")
	}

	extensions := adapter.ExtractUnclaimedExtensions(native, lmosClaimedPaths, canonical.ExtensionNamespace(frameworkTag, 1), tracker)

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

// FromCanonical reconstructs an LMOS Thing from the canonical model.
func (a *Adapter) FromCanonical(agent adapter.CanonicalAgent) (map[string]interface{}, error) {
	subj := canonical.NamedNode(agent.AgentURI)
	native := map[string]interface{}{
		"@context": "https://www.w3.org/2019/wot/td/v1",
		"actions":  map[string]interface{}{},
	}

	for _, q := range agent.Quads {
		if !q.Subject.Equal(subj) || q.Predicate.Kind != canonical.KindNamedNode {
			continue
		}
		switch q.Predicate.IRI {
		case canonical.NSChrysalis + "name":
			native["title"] = q.Object.Lexical
		case canonical.NSChrysalis + "goal":
			native["description"] = q.Object.Lexical
		case canonical.NSChrysalis + "hasCapability":
			actions := native["actions"].(map[string]interface{})
			actions[q.Object.Lexical] = map[string]interface{}{}
		}
	}

	adapter.RestoreAllExtensions(native, agent.Extensions, canonical.ExtensionNamespace(frameworkTag, 1))

	return native, nil
}

// GetFieldMappings declares this adapter's source-path to
// canonical-predicate correspondence.
func (a *Adapter) GetFieldMappings() []adapter.FieldMapping {
	return []adapter.FieldMapping{
		{SourcePath: "title", CanonicalPredicate: canonical.NSChrysalis + "name", Weight: 3},
		{SourcePath: "description", CanonicalPredicate: canonical.NSChrysalis + "goal", Weight: 3},
		{SourcePath: "actions", CanonicalPredicate: canonical.NSChrysalis + "hasCapability", Weight: 2},
		{SourcePath: "securityDefinitions", CanonicalPredicate: "", Weight: 1},
		{SourcePath: "forms", CanonicalPredicate: "", Weight: 1},
	}
}

var _ adapter.Adapter = (*Adapter)(nil)
