package graph

import "context"

// Property keys and vertex labels used throughout the graph.
const (
	PropName       = "NAME"
	PropInterested = "INTERESTED"

	InterestedYes = "YES"
	InterestedNo  = "NO"

	LabelCompany = "COMPANY"
	LabelPerson  = "PERSON"
)

// Vertex is a graph vertex with its full property map. Properties includes
// NAME but never id or label.
type Vertex struct {
	ID         string
	Label      string
	Properties map[string]string
}

// Name returns the vertex NAME property.
func (v *Vertex) Name() string {
	return v.Properties[PropName]
}

// Interested reports whether the vertex is flagged INTERESTED=YES.
func (v *Vertex) Interested() bool {
	return v.Properties[PropInterested] == InterestedYes
}

// Edge is a directed edge between two vertices.
type Edge struct {
	ID         string
	Label      string
	From       string // out-vertex id
	To         string // in-vertex id
	Properties map[string]string
}

// Step pairs an edge with the vertex at its far end, as returned by
// neighborhood queries.
type Step struct {
	Edge  Edge
	Other Vertex
}

// MatchKind selects how FindByName compares against the NAME property.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchContaining
	MatchRegex
)

// NameMatch is a NAME predicate for vertex lookup.
type NameMatch struct {
	Kind  MatchKind
	Value string
}

// PathElement is one position in an alternating vertex/edge path. Exactly
// one of Vertex or Edge is set.
type PathElement struct {
	Vertex *Vertex
	Edge   *Edge
}

// Path is an alternating vertex/edge/…/vertex sequence.
type Path struct {
	Elements []PathElement
}

// Terminal returns the last vertex of the path, or nil for an empty path.
func (p Path) Terminal() *Vertex {
	for i := len(p.Elements) - 1; i >= 0; i-- {
		if p.Elements[i].Vertex != nil {
			return p.Elements[i].Vertex
		}
	}
	return nil
}

// Engine is the primitive property-graph interface. Two implementations
// exist: a remote Gremlin binding and an embedded in-memory engine.
type Engine interface {
	// AddVertex creates a vertex and returns its id. Props must include NAME.
	AddVertex(ctx context.Context, label string, props map[string]string) (string, error)
	// SetVertexProperty writes a single-cardinality vertex property.
	SetVertexProperty(ctx context.Context, id, key, value string) error
	// VertexByID fetches one vertex, nil if absent.
	VertexByID(ctx context.Context, id string) (*Vertex, error)
	// Vertices lists every vertex in the graph.
	Vertices(ctx context.Context) ([]Vertex, error)
	// FindByName returns vertices of label whose NAME satisfies the match.
	FindByName(ctx context.Context, label string, match NameMatch) ([]Vertex, error)

	// OutEdges returns the outgoing edges of id with their in-vertices.
	OutEdges(ctx context.Context, id string) ([]Step, error)
	// InEdges returns the incoming edges of id with their out-vertices.
	InEdges(ctx context.Context, id string) ([]Step, error)
	// FindEdge returns the edge (src)-[label]->(dst), nil if absent.
	FindEdge(ctx context.Context, src, label, dst string) (*Edge, error)
	// AddEdge creates an edge and returns its id.
	AddEdge(ctx context.Context, src, label, dst string, props map[string]string) (string, error)
	// SetEdgeProperty writes a single-cardinality edge property.
	SetEdgeProperty(ctx context.Context, edgeID, key, value string) error

	// InterestedPaths returns the single-vertex path for id when the vertex
	// itself is INTERESTED=YES, plus every simple path of length ≤ n hops
	// from id that terminates at an INTERESTED=YES vertex.
	InterestedPaths(ctx context.Context, id string, n int) ([]Path, error)

	// Reconnect re-establishes the backend connection after a dropped
	// session. A no-op for embedded engines.
	Reconnect(ctx context.Context) error
	Close()
}
