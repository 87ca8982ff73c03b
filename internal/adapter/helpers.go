package adapter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
)

// AddQuadWithTracking appends (subject, predicate, object) and marks
// sourcePath mapped.
func AddQuadWithTracking(quads *[]canonical.Quad, tracker *FieldTracker, subject, predicate, object canonical.Term, sourcePath string) {
	*quads = append(*quads, canonical.NewQuad(subject, predicate, object))
	tracker.MarkMapped(sourcePath)
}

// AddOptionalLiteral adds a literal quad only when value is non-empty;
// an empty value contributes no quad and leaves the tracker untouched, so
// the source path is not classified (callers typically follow up with
// MarkLost/MarkUnmapped when the field is truly absent upstream).
func AddOptionalLiteral(quads *[]canonical.Quad, tracker *FieldTracker, subject, predicate canonical.Term, value, datatype, sourcePath string) {
	if value == "" {
		return
	}
	AddQuadWithTracking(quads, tracker, subject, predicate, canonical.Literal(value, datatype), sourcePath)
}

// AddOptionalURI adds a named-node-object quad only when value is non-empty.
func AddOptionalURI(quads *[]canonical.Quad, tracker *FieldTracker, subject, predicate canonical.Term, value, sourcePath string) {
	if value == "" {
		return
	}
	AddQuadWithTracking(quads, tracker, subject, predicate, canonical.NamedNode(value), sourcePath)
}

// AddOptionalQuad adds an already-constructed object term only when the
// object is not the zero Term.
func AddOptionalQuad(quads *[]canonical.Quad, tracker *FieldTracker, subject, predicate, object canonical.Term, sourcePath string) {
	if object == (canonical.Term{}) {
		return
	}
	AddQuadWithTracking(quads, tracker, subject, predicate, object, sourcePath)
}

// CreateTypedBlankNode allocates a fresh blank node under idPrefix, links
// it from parent via linkPredicate, and types it via rdf:type, returning
// the blank node term so the caller can attach further quads to it.
func CreateTypedBlankNode(quads *[]canonical.Quad, tracker *FieldTracker, parent, linkPredicate, typeIRI canonical.Term, idPrefix, sourcePath string) canonical.Term {
	node := canonical.BlankNode(fmt.Sprintf("%s-%d", idPrefix, len(*quads)))
	AddQuadWithTracking(quads, tracker, parent, linkPredicate, node, sourcePath)
	*quads = append(*quads, canonical.NewQuad(node, canonical.RDFType, typeIRI))
	return node
}

// AddLiteralArray emits one literal quad per element and records
// sourcePath exactly once, regardless of how many elements there are.
func AddLiteralArray(quads *[]canonical.Quad, tracker *FieldTracker, subject, predicate canonical.Term, values []string, sourcePath string) {
	if len(values) == 0 {
		return
	}
	for _, v := range values {
		*quads = append(*quads, canonical.NewQuad(subject, predicate, canonical.Literal(v, "")))
	}
	tracker.MarkMapped(sourcePath)
}

// AddJSONLiteral serializes value with stable (sorted) key order and
// emits one literal quad carrying the JSON text. A nil value yields no
// quad and no tracking side effect.
func AddJSONLiteral(quads *[]canonical.Quad, tracker *FieldTracker, subject, predicate canonical.Term, value interface{}, sourcePath string) error {
	if value == nil {
		return nil
	}
	b, err := stableJSON(value)
	if err != nil {
		return fmt.Errorf("adapter: add json literal: %w", err)
	}
	AddQuadWithTracking(quads, tracker, subject, predicate, canonical.Literal(string(b), canonical.NSXSD+"string"), sourcePath)
	return nil
}

// stableJSON re-encodes value through encoding/json, which sorts
// map[string]interface{} keys on marshal, giving a stable byte
// representation regardless of the caller's map iteration order.
func stableJSON(value interface{}) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// RestoreExtension returns the first extension matching (namespace,
// property). It tries to JSON-decode the stored value; on failure it
// falls back to the raw value. def is returned when no match exists.
func RestoreExtension(extensions []ExtensionProperty, namespace, property string, def interface{}) interface{} {
	for _, ext := range extensions {
		if ext.Namespace != namespace || ext.Property != property {
			continue
		}
		if s, ok := ext.Value.(string); ok {
			var decoded interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
			return s
		}
		return ext.Value
	}
	return def
}

// RestoreTarget is one (dotted-path, namespace, property) instruction for
// RestoreExtensionsBatch.
type RestoreTarget struct {
	Path      string // dot-separated, e.g. "metadata.custom.owner"
	Namespace string
	Property  string
}

// RestoreExtensionsBatch idempotently writes every matching extension
// back into target at its dotted path, creating intermediate maps as
// needed.
func RestoreExtensionsBatch(target map[string]interface{}, extensions []ExtensionProperty, targets []RestoreTarget) {
	for _, rt := range targets {
		val := RestoreExtension(extensions, rt.Namespace, rt.Property, nil)
		if val == nil {
			continue
		}
		setDottedPath(target, rt.Path, val)
	}
}

// ClaimedPaths is the set of dotted source paths a named field mapping
// already accounts for. ExtractUnclaimedExtensions does not descend into
// a claimed path: when a claimed path holds a map, none of its children
// are visited.
type ClaimedPaths map[string]bool

// ExtractUnclaimedExtensions recursively walks native and returns one
// ExtensionProperty per leaf value whose dotted path is not in claimed,
// marking each such path unmapped on tracker. This is the fallback every
// adapter needs for the field-tracking totality invariant: a named
// mapping only ever covers the fields an adapter's author thought to
// enumerate, so whatever is left over — an input field no one wrote code
// for — still has to be observed and classified rather than silently
// dropped. Map keys are visited in sorted order for deterministic output;
// an array or a scalar is always a leaf (arrays are carried whole, not
// decomposed per element).
func ExtractUnclaimedExtensions(native map[string]interface{}, claimed ClaimedPaths, namespace string, tracker *FieldTracker) []ExtensionProperty {
	var exts []ExtensionProperty
	walkUnclaimedFields(native, "", claimed, namespace, tracker, &exts)
	return exts
}

func walkUnclaimedFields(value interface{}, path string, claimed ClaimedPaths, namespace string, tracker *FieldTracker, exts *[]ExtensionProperty) {
	if m, ok := value.(map[string]interface{}); ok && len(m) > 0 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			if claimed[childPath] {
				continue
			}
			walkUnclaimedFields(m[k], childPath, claimed, namespace, tracker, exts)
		}
		return
	}
	if path == "" || isEmptyLeaf(value) {
		return
	}
	tracker.MarkUnmapped(path)
	*exts = append(*exts, ExtensionProperty{
		Namespace:  namespace,
		Property:   path,
		Value:      value,
		SourcePath: path,
	})
}

func isEmptyLeaf(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}

// RestoreAllExtensions writes every extension in namespace ns back into
// target at its SourcePath, reconstructing intermediate maps as needed —
// the counterpart to ExtractUnclaimedExtensions: it restores whatever
// that walk captured without the caller needing to name each path again.
func RestoreAllExtensions(target map[string]interface{}, extensions []ExtensionProperty, namespace string) {
	for _, ext := range extensions {
		if ext.Namespace != namespace {
			continue
		}
		setDottedPath(target, ext.SourcePath, ext.Value)
	}
}

func setDottedPath(target map[string]interface{}, dotted string, value interface{}) {
	parts := strings.Split(dotted, ".")
	cur := target
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[part] = next
		}
		cur = next
	}
}
