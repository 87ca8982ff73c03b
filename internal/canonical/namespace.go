package canonical

import "strconv"

// Reserved namespace prefixes (spec.md §4.4). rdf/xsd are the W3C
// standards; chrysalis is the canonical agent ontology; adapters register
// their own extension prefix once and version it.
const (
	NSRDF        = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSXSD        = "http://www.w3.org/2001/XMLSchema#"
	NSChrysalis  = "https://chrysalis.dev/ontology#"
)

// RDFType is rdf:type.
var RDFType = NamedNode(NSRDF + "type")

// Chrysalis agent-ontology types (spec.md §4.4).
var (
	TypeAgent            = NamedNode(NSChrysalis + "Agent")
	TypeTool             = NamedNode(NSChrysalis + "Tool")
	TypeLLMConfig        = NamedNode(NSChrysalis + "LLMConfig")
	TypeMemorySystem     = NamedNode(NSChrysalis + "MemorySystem")
	TypeWorkingMemory    = NamedNode(NSChrysalis + "WorkingMemory")
	TypeEpisodicMemory   = NamedNode(NSChrysalis + "EpisodicMemory")
	TypeSemanticMemory   = NamedNode(NSChrysalis + "SemanticMemory")
	TypeProceduralMemory = NamedNode(NSChrysalis + "ProceduralMemory")
	TypeCoreMemory       = NamedNode(NSChrysalis + "CoreMemory")
	TypeMCPBinding       = NamedNode(NSChrysalis + "MCPBinding")
	TypeA2ABinding       = NamedNode(NSChrysalis + "A2ABinding")
	TypeHTTPBinding      = NamedNode(NSChrysalis + "HTTPBinding")
	TypeWebSocketBinding = NamedNode(NSChrysalis + "WebSocketBinding")
)

// AgentIRI returns the canonical IRI allocation for an agent id (spec.md §6.1).
func AgentIRI(agentID string) string {
	return "https://chrysalis.dev/agent/" + agentID
}

// ExtensionNamespace returns a per-adapter extension prefix, fixed once
// per framework tag (e.g. "usa", "lmos") and versioned.
func ExtensionNamespace(frameworkTag string, version int) string {
	return "https://chrysalis.dev/ext/" + frameworkTag + "/v" + strconv.Itoa(version) + "#"
}
