// Package adapter defines the bidirectional framework-translation
// contract (spec.md §4.6): the CanonicalAgent model, field-tracking
// bookkeeping, the base-adapter helper functions, and the fidelity
// scorer every concrete adapter builds on.
package adapter

import (
	"time"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

// ExtensionProperty carries a field the canonical model does not
// express, tagged with enough information to restore it losslessly.
type ExtensionProperty struct {
	Namespace  string
	Property   string
	Value      interface{}
	SourcePath string
}

// ValidationIssue is a severity-tagged, coded pre-translation finding.
type ValidationIssue struct {
	Code     string
	Message  string
	Severity string // "error" or "warning"
	Path     string
}

// ValidationResult is the outcome of validate_native.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// TranslationMetadata records what happened during a to_canonical run.
type TranslationMetadata struct {
	MappedFields    []string
	UnmappedFields  []string
	LostFields      []string
	Warnings        []string
	FidelityScore   float64
	TranslationTime time.Duration
}

// CanonicalAgent is the pair (agent-URI, quad-set) plus the metadata
// spec.md §3.2 requires.
type CanonicalAgent struct {
	AgentURI   string
	Quads      []canonical.Quad
	Framework  string
	Extensions []ExtensionProperty
	Metadata   TranslationMetadata
}

// FieldMapping declaratively describes one source-path to
// canonical-predicate correspondence, for diagnostics. Score does not
// read FieldMapping or its Weight; it weighs paths by DefaultFieldWeights.
type FieldMapping struct {
	SourcePath         string
	CanonicalPredicate string
	Weight             int
}

// Adapter is the framework-translation contract every concrete adapter
// (usa, lmos, ...) implements (spec.md §4.6).
type Adapter interface {
	FrameworkTag() string
	Name() string
	Version() string
	ExtensionNamespace() string
	SupportsShadow() bool
	ShadowAttachmentPath() string

	ToCanonical(native map[string]interface{}) (CanonicalAgent, error)
	FromCanonical(agent CanonicalAgent) (map[string]interface{}, error)
	ValidateNative(native map[string]interface{}) ValidationResult
	GetFieldMappings() []FieldMapping
}
