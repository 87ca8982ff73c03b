package canonical

// Quad is the tuple (subject, predicate, object, graph). Subjects are
// NamedNode|BlankNode; predicates are NamedNode; objects are any term
// except DefaultGraph; graphs are NamedNode|DefaultGraph.
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

// NewQuad constructs a quad in the default graph.
func NewQuad(subject, predicate, object Term) Quad {
	return Quad{Subject: subject, Predicate: predicate, Object: object, Graph: DefaultGraphTerm}
}

// NewQuadInGraph constructs a quad within a named graph.
func NewQuadInGraph(subject, predicate, object, graph Term) Quad {
	return Quad{Subject: subject, Predicate: predicate, Object: object, Graph: graph}
}

// Equal compares quads component-wise using Term.Equal.
func (q Quad) Equal(other Quad) bool {
	return q.Subject.Equal(other.Subject) &&
		q.Predicate.Equal(other.Predicate) &&
		q.Object.Equal(other.Object) &&
		q.Graph.Equal(other.Graph)
}
